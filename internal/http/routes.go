package httpx

import (
	"log/slog"
	"net/http"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth       *service.AuthService
	Credits    *service.CreditService
	Interviews *service.InterviewService
	Pipeline   *service.PipelineService
	Webhooks   *service.WebhookService
	Store      core.ObjectStore
	Jobs       core.JobRepository

	Storage    config.StorageConfig
	HTTP       config.HTTPConfig
	Dispatcher config.DispatcherConfig

	HealthChecks []HealthCheck
	Logger       *slog.Logger
}

// NewRouter builds the service mux: authenticated ingress and read API under
// /v1, the unauthenticated worker surface the dispatcher posts to, and the
// health probe. Middleware order is Recover, then Logging, then per-route auth.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	analyzeHandlers := &AnalyzeHandlers{
		Store:    services.Store,
		Jobs:     services.Jobs,
		Credits:  services.Credits,
		Webhooks: services.Webhooks,
		Storage:  services.Storage,
		HTTP:     services.HTTP,
		Queue:    services.Dispatcher,
		Logger:   logger,
	}
	taskHandlers := &TaskHandlers{Pipeline: services.Pipeline, Logger: logger}
	interviewHandlers := &InterviewHandlers{
		Svc:      services.Interviews,
		AudioTTL: services.Storage.SignedURLTTL,
		Logger:   logger,
	}
	creditHandlers := &CreditHandlers{Svc: services.Credits}
	healthHandlers := &HealthHandlers{Checks: services.HealthChecks}

	requireAuth := RequireAuth(services.Auth)

	mux.Handle("POST /v1/analyze-async", requireAuth(http.HandlerFunc(analyzeHandlers.AnalyzeAsync)))
	mux.Handle("GET /v1/interviews", requireAuth(http.HandlerFunc(interviewHandlers.List)))
	mux.Handle("GET /v1/interviews/{id}", requireAuth(http.HandlerFunc(interviewHandlers.Get)))
	mux.Handle("GET /v1/interviews/{id}/audio", requireAuth(http.HandlerFunc(interviewHandlers.Audio)))
	mux.Handle("DELETE /v1/interviews/{id}", requireAuth(http.HandlerFunc(interviewHandlers.Delete)))
	mux.Handle("GET /v1/credits", requireAuth(http.HandlerFunc(creditHandlers.Balance)))

	// Worker surface; reachable only from the dispatcher's network position
	mux.HandleFunc("POST /v1/tasks/process-audio", taskHandlers.ProcessAudio)

	mux.HandleFunc("GET /healthz", healthHandlers.Healthz)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Healthz)

	return Recover(logger)(Logging(logger)(mux))
}
