package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/adapters/dispatcher"
	"github.com/interviewlens/lens-api/internal/adapters/reaper"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/observability/statsd"
)

// DispatcherRunConfig contains configuration for the queue dispatcher.
type DispatcherRunConfig struct {
	Jobs        core.JobRepository
	Compensator core.FailureCompensator
	Metrics     statsd.Sink
	Config      config.DispatcherConfig
	Logger      *slog.Logger
}

// RunDispatcher starts the queue dispatcher service.
func RunDispatcher(ctx context.Context, cfg DispatcherRunConfig) error {
	runner, err := dispatcher.New(dispatcher.Options{
		Jobs:        cfg.Jobs,
		Compensator: cfg.Compensator,
		Metrics:     cfg.Metrics,
		Config:      cfg.Config,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperRunConfig contains configuration for the job reaper.
type ReaperRunConfig struct {
	Jobs        core.JobReaperRepository
	Compensator core.FailureCompensator
	Config      config.ReaperConfig
	Logger      *slog.Logger
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperRunConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Repo:        cfg.Jobs,
		Compensator: cfg.Compensator,
		Config:      cfg.Config,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
