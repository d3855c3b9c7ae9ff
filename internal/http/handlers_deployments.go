package httpx

import (
	"net/http"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/service"
)

// DeploymentHandlers serves tenant-scoped deployment CRUD.
type DeploymentHandlers struct {
	Svc *service.DeploymentService
}

type createDeploymentResponse struct {
	DeploymentID string `json:"deployment_id"`
}

// Create validates the config against the integration schema and stores the deployment.
func (h *DeploymentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := pathTenant(w, r)
	if !ok {
		return
	}
	var req model.CreateDeploymentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	dep, err := h.Svc.Create(r.Context(), tenant, &req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createDeploymentResponse{DeploymentID: dep.ID})
}

// List returns the tenant's deployments.
func (h *DeploymentHandlers) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := pathTenant(w, r)
	if !ok {
		return
	}
	deps, err := h.Svc.List(r.Context(), tenant)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if deps == nil {
		deps = []*model.Deployment{}
	}
	WriteJSON(w, http.StatusOK, deps)
}

// Get returns one of the tenant's deployments.
func (h *DeploymentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := tenantAndID(w, r)
	if !ok {
		return
	}
	dep, err := h.Svc.Get(r.Context(), tenant, id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}

// Update applies a partial update and returns the stored deployment.
func (h *DeploymentHandlers) Update(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := tenantAndID(w, r)
	if !ok {
		return
	}
	var req model.UpdateDeploymentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	dep, err := h.Svc.Update(r.Context(), tenant, id, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}

// Delete removes the deployment together with its jobs and violations.
func (h *DeploymentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := tenantAndID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), tenant, id); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Violations lists the deployment's jobs, newest first, each with its violations.
func (h *DeploymentHandlers) Violations(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := tenantAndID(w, r)
	if !ok {
		return
	}
	history, err := h.Svc.ViolationHistory(r.Context(), tenant, id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if history == nil {
		history = []model.DeploymentJobViolations{}
	}
	WriteJSON(w, http.StatusOK, history)
}

func tenantAndID(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	tenant, ok := pathTenant(w, r)
	if !ok {
		return "", "", false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return "", "", false
	}
	return tenant, id, true
}
