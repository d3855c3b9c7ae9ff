package httpx

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
	"github.com/target/integrations-dispatch/internal/service"
)

// DispatchHandlers serves the internal surface the scheduler and workers call.
type DispatchHandlers struct {
	Svc *service.DispatchService
	// SchedulerToken must accompany the scheduler source header for an enqueue to
	// skip the rate limit.
	SchedulerToken string
}

// ScheduledDeployments lists enabled deployments that carry a schedule.
func (h *DispatchHandlers) ScheduledDeployments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.Svc.ScheduledDeployments(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if deps == nil {
		deps = []*model.Deployment{}
	}
	WriteJSON(w, http.StatusOK, deps)
}

// Enqueue creates a queued job for a deployment.
func (h *DispatchHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.DeploymentID = strings.TrimSpace(req.DeploymentID)
	if err := validateRequest(&req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	job, err := h.Svc.Enqueue(r.Context(), service.EnqueueRequest{
		DeploymentID:  req.DeploymentID,
		FromScheduler: h.fromScheduler(r),
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, model.EnqueueJobResponse{ID: job.ID})
}

// fromScheduler reports whether the request carries the scheduler source header
// and the scheduler bearer token. The header alone is not trusted.
func (h *DispatchHandlers) fromScheduler(r *http.Request) bool {
	if h.SchedulerToken == "" || r.Header.Get(ports.SourceHeader) != ports.SourceScheduler {
		return false
	}
	got, ok := bearerToken(r)
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.SchedulerToken)) == 1
}

// ClaimNext hands the oldest queued job on a queue to the caller. An empty queue is
// a 204. Store failures are a 500 so a worker treats them like any other bad poll.
func (h *DispatchHandlers) ClaimNext(w http.ResponseWriter, r *http.Request) {
	queue := strings.TrimSpace(r.URL.Query().Get("queue"))
	if queue == "" {
		queue = model.DefaultQueue
	}
	job, err := h.Svc.ClaimNext(r.Context(), queue)
	switch {
	case errors.Is(err, model.ErrNoJobsAvailable):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		writeAppErrorStatus(w, r, err, http.StatusInternalServerError)
	default:
		WriteJSON(w, http.StatusOK, job)
	}
}

// GetJob returns a single job.
func (h *DispatchHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.Svc.GetJob(r.Context(), id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Complete records the terminal status of a claimed job. An empty body completes as done.
func (h *DispatchHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.CompleteJobRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	job, err := h.Svc.Complete(r.Context(), id, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeleteRange removes finished jobs inside ?before=&after=. At least one bound is required.
func (h *DispatchHandlers) DeleteRange(w http.ResponseWriter, r *http.Request) {
	before, err := parseTimeQuery(r, "before")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	after, err := parseTimeQuery(r, "after")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	n, err := h.Svc.DeleteRange(r.Context(), model.TimeRange{Before: before, After: after})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.DeleteJobsResponse{Deleted: n})
}

// RecordViolation attaches a finding to a job.
func (h *DispatchHandlers) RecordViolation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.CreateViolationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	v, err := h.Svc.RecordViolation(r.Context(), id, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.CreateViolationResponse{ID: v.ID})
}
