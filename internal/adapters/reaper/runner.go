// Package reaper provides the adapter for running the job queue reaper.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/service"
)

// Runner constructs the reaper service and runs the maintenance loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Repo        core.JobReaperRepository
	Compensator core.FailureCompensator
	Config      config.ReaperConfig
	Logger      *slog.Logger
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Repo == nil {
		return nil, errors.New("reaper repository is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:        opts.Repo,
		Compensator: opts.Compensator,
		Config:      opts.Config,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper: reaper,
		logger: opts.Logger,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
