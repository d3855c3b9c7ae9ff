package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/service"
)

// CatalogSyncer runs one catalog sync on demand.
type CatalogSyncer interface {
	Sync(ctx context.Context) (*model.SyncResult, error)
}

// IntegrationHandlers serves the integration catalog.
type IntegrationHandlers struct {
	Svc     *service.IntegrationService
	Catalog CatalogSyncer
}

type createIntegrationResponse struct {
	ID string `json:"id"`
}

type deleteIntegrationsResponse struct {
	Deleted int64 `json:"deleted"`
}

// InitIntegrations pulls the remote catalog once and reports what changed.
func (h *IntegrationHandlers) InitIntegrations(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		WriteAppError(w, r, fmt.Errorf("%w: no catalog source configured", service.ErrCatalogFetch))
		return
	}
	res, err := h.Catalog.Sync(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if res == nil {
		res = &model.SyncResult{}
	}
	if res.Created == nil {
		res.Created = []string{}
	}
	if res.Updated == nil {
		res.Updated = []string{}
	}
	WriteJSON(w, http.StatusOK, res)
}

// List returns every integration.
func (h *IntegrationHandlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.List(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Integration{}
	}
	WriteJSON(w, http.StatusOK, items)
}

// Get returns one integration.
func (h *IntegrationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	integ, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, integ)
}

// Create registers an integration by hand.
func (h *IntegrationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateIntegrationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	integ, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createIntegrationResponse{ID: integ.ID})
}

// DeleteAll clears the catalog.
func (h *IntegrationHandlers) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.DeleteAll(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, deleteIntegrationsResponse{Deleted: n})
}
