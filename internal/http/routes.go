package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/target/integrations-dispatch/internal/service"
)

// RouterServices holds all the services needed by the HTTP router. A nil service
// leaves its routes unregistered.
type RouterServices struct {
	Dispatch     *service.DispatchService
	Integrations *service.IntegrationService
	Deployments  *service.DeploymentService
	Jobs         *service.JobQueryService
	Violations   *service.ViolationService
	Catalog      CatalogSyncer
	// APIToken guards the management routes.
	APIToken string
	// SchedulerToken lets POST /jobs callers that present it skip the enqueue rate limit.
	SchedulerToken string
	// Health is pinged by /healthz when set.
	Health Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// MaxBodyBytes caps request bodies when positive.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	if services.Dispatch != nil {
		registerDispatchRoutes(mux, &DispatchHandlers{
			Svc:            services.Dispatch,
			SchedulerToken: services.SchedulerToken,
		})
	}
	registerManagementRoutes(mux, services)

	health := healthHandler(services.Health)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	var handler http.Handler = mux
	if services.MaxBodyBytes > 0 {
		handler = http.MaxBytesHandler(mux, services.MaxBodyBytes)
	}
	return Chain(handler,
		middleware.RequestID,
		middleware.RealIP,
		Logging(logger),
		Recover(logger),
	)
}

func registerDispatchRoutes(mux *http.ServeMux, h *DispatchHandlers) {
	mux.HandleFunc("GET /deployments/scheduled", h.ScheduledDeployments)
	mux.HandleFunc("POST /jobs", h.Enqueue)
	mux.HandleFunc("DELETE /jobs", h.DeleteRange)
	mux.HandleFunc("GET /jobs/next", h.ClaimNext)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /jobs/{id}/complete", h.Complete)
	mux.HandleFunc("POST /jobs/{id}/violations", h.RecordViolation)
}

func registerManagementRoutes(mux *http.ServeMux, services RouterServices) {
	auth := RequireBearer(services.APIToken)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	if services.Integrations != nil {
		h := &IntegrationHandlers{Svc: services.Integrations, Catalog: services.Catalog}
		handle("POST /init-integrations", h.InitIntegrations)
		handle("GET /integrations", h.List)
		handle("POST /integrations", h.Create)
		handle("DELETE /integrations", h.DeleteAll)
		handle("GET /integrations/{id}", h.Get)
	}

	if services.Deployments != nil {
		h := &DeploymentHandlers{Svc: services.Deployments}
		handle("POST /tenants/{tenant}/deployments", h.Create)
		handle("GET /tenants/{tenant}/deployments", h.List)
		handle("GET /tenants/{tenant}/deployments/{id}", h.Get)
		handle("PUT /tenants/{tenant}/deployments/{id}", h.Update)
		handle("DELETE /tenants/{tenant}/deployments/{id}", h.Delete)
		handle("GET /tenants/{tenant}/deployments/{id}/violations", h.Violations)
	}

	if services.Jobs != nil && services.Violations != nil {
		h := &TenantHandlers{Jobs: services.Jobs, Violations: services.Violations}
		handle("GET /tenants/{tenant}/jobs", h.ListJobs)
		handle("GET /tenants/{tenant}/jobs/{id}", h.GetJob)
		handle("GET /tenants/{tenant}/violations", h.ListViolations)
	}
}
