package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/adapters/deepgram"
	"github.com/interviewlens/lens-api/internal/adapters/gemini"
	"github.com/interviewlens/lens-api/internal/adapters/media"
	"github.com/interviewlens/lens-api/internal/adapters/s3store"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/data"
	"github.com/interviewlens/lens-api/internal/observability/statsd"
	"github.com/interviewlens/lens-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth         *service.AuthService
	Credits      *service.CreditService
	Interviews   *service.InterviewService
	Webhooks     *service.WebhookService
	Pipeline     *service.PipelineService
	Compensation *service.CompensationService

	Store   core.ObjectStore
	Jobs    *data.JobRepo
	Users   *data.UserRepo
	Metrics *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Jobs       *data.JobRepo
	Users      *data.UserRepo
	Interviews *data.InterviewRepo
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, logger *slog.Logger) *serviceRepositories {
	return &serviceRepositories{
		Jobs:       data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		Users:      data.NewUserRepo(db, logger),
		Interviews: data.NewInterviewRepo(db, logger),
	}
}

// NewServices wires repositories, provider adapters, and domain services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	repos := buildRepositories(deps.DB, logger)

	store, err := s3store.New(ctx, cfg.Storage, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create object store: %w", err)
	}

	transcription := service.NewTranscriptionService(deepgram.NewClient(cfg.Transcription, logger), logger)
	analysis := service.NewAnalysisService(gemini.NewClient(cfg.Analysis, logger), logger)
	waveform := media.NewExtractor(cfg.Pipeline, logger)

	credits := service.NewCreditService(repos.Users, cfg.Pipeline.JobCost, logger)
	interviews := service.NewInterviewService(repos.Interviews, store, logger)
	webhooks := service.NewWebhookService(cfg.Webhook, logger)

	pipeline, err := service.NewPipelineService(service.PipelineServiceOptions{
		Store:       store,
		Transcriber: transcription,
		Analysis:    analysis,
		Waveform:    waveform,
		Interviews:  repos.Interviews,
		Notifier:    webhooks,
		Storage:     cfg.Storage,
		Pipeline:    cfg.Pipeline,
		FrontendURL: cfg.HTTP.FrontendURL,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire pipeline service: %w", err)
	}

	metricsSink, err := BuildMetricsSink(cfg.Observability.Metrics, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire metrics sink: %w", err)
	}
	ops, err := BuildFailureNotifier(cfg.Observability.Notifications, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire failure notifier: %w", err)
	}

	compensation, err := service.NewCompensationService(service.CompensationServiceOptions{
		Credits:    credits,
		Interviews: repos.Interviews,
		Store:      store,
		Notifier:   webhooks,
		Ops:        ops,
		Webhook:    cfg.Webhook,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire compensation service: %w", err)
	}

	auth, err := BuildAuthService(ctx, AuthStackConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Users:       repos.Users,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire auth service: %w", err)
	}

	return ServiceContainer{
		Auth:         auth,
		Credits:      credits,
		Interviews:   interviews,
		Webhooks:     webhooks,
		Pipeline:     pipeline,
		Compensation: compensation,
		Store:        store,
		Jobs:         repos.Jobs,
		Users:        repos.Users,
		Metrics:      metricsSink,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newDispatcherBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeDispatcher,
		name: "dispatcher",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var dispatcherCfg config.DispatcherConfig
			if deps.cfg.Config != nil {
				dispatcherCfg = deps.cfg.Config.Dispatcher
			}
			return RunDispatcher(ctx, DispatcherRunConfig{
				Jobs:        deps.cfg.Services.Jobs,
				Compensator: deps.cfg.Services.Compensation,
				Metrics:     deps.cfg.Services.Metrics,
				Config:      dispatcherCfg,
				Logger:      deps.logger,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperRunConfig{
				Jobs:        deps.cfg.Services.Jobs,
				Compensator: deps.cfg.Services.Compensation,
				Config:      reaperCfg,
				Logger:      deps.logger,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newDispatcherBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeDispatcher,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
