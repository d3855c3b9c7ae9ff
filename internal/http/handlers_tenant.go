package httpx

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/service"
)

// TenantHandlers serves the tenant's job and violation listings.
type TenantHandlers struct {
	Jobs       *service.JobQueryService
	Violations *service.ViolationService
}

// ListJobs returns one page of the tenant's jobs, newest first.
func (h *TenantHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	tenant, ok := pathTenant(w, r)
	if !ok {
		return
	}
	opts, err := jobListOptions(r, tenant)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	page, err := h.Jobs.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// GetJob returns one of the tenant's jobs.
func (h *TenantHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := tenantAndID(w, r)
	if !ok {
		return
	}
	job, err := h.Jobs.Get(r.Context(), tenant, id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListViolations returns the tenant's violations, optionally reshaped by ?filter=<JMESPath>.
func (h *TenantHandlers) ListViolations(w http.ResponseWriter, r *http.Request) {
	tenant, ok := pathTenant(w, r)
	if !ok {
		return
	}
	out, err := h.Violations.ListForTenant(r.Context(), tenant, r.URL.Query().Get("filter"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if vs, isList := out.([]*model.Violation); isList && vs == nil {
		out = []*model.Violation{}
	}
	WriteJSON(w, http.StatusOK, out)
}

func jobListOptions(r *http.Request, tenant string) (model.JobListOptions, error) {
	opts := model.JobListOptions{
		TenantID: tenant,
		Page:     parseIntQuery(r, "page", 1),
		PerPage:  parseIntQuery(r, "per_page", model.DefaultPerPage),
	}
	before, err := parseTimeQuery(r, "before")
	if err != nil {
		return opts, err
	}
	after, err := parseTimeQuery(r, "after")
	if err != nil {
		return opts, err
	}
	opts.Finished = model.TimeRange{Before: before, After: after}

	if dep := strings.TrimSpace(r.URL.Query().Get("deployment_id")); dep != "" {
		if _, perr := uuid.Parse(dep); perr != nil {
			return opts, apperrors.ValidationField("deployment_id", "deployment_id must be a UUID")
		}
		opts.DeploymentID = &dep
	}
	return opts, nil
}
