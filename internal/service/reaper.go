package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo        core.JobReaperRepository // Required: queue maintenance repository
	Compensator core.FailureCompensator  // Required: settles permanently failed jobs
	Config      config.ReaperConfig      // Required: reaper configuration
	Logger      *slog.Logger             // Optional: structured logger
}

// ReaperService provides job queue maintenance.
//
// This service manages:
// - Requeueing lease-expired running jobs that still have retries left.
// - Failing lease-expired jobs that are out of retries, with compensation.
// - Failing stale pending jobs that were never picked up, with compensation.
// - Deleting old terminal jobs to prevent database bloat.
type ReaperService struct {
	repo        core.JobReaperRepository
	compensator core.FailureCompensator
	config      config.ReaperConfig
	logger      *slog.Logger
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobReaperRepository is required")
	}
	if opts.Compensator == nil {
		return nil, errors.New("FailureCompensator is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
		)
	}

	return &ReaperService{
		repo:        opts.Repo,
		compensator: opts.Compensator,
		config:      opts.Config,
		logger:      logger,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// It performs maintenance at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run cleanup immediately after jitter
	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the cleanup loop until context is cancelled.
func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
				// Continue running despite errors
			}
		}
	}
}

// runCleanup performs all maintenance operations.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	var errs []error

	steps := []struct {
		fn    func(context.Context) (int64, error)
		label string
	}{
		{s.requeueExpiredJobs, "requeue expired jobs"},
		{s.failExhaustedJobs, "fail exhausted jobs"},
		{s.failStalePendingJobs, "fail stale pending jobs"},
		{s.deleteTerminalJobs, "delete terminal jobs"},
	}

	for _, step := range steps {
		if _, err := step.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// requeueExpiredJobs returns crashed runs to the pending state while they
// still have retries left.
func (s *ReaperService) requeueExpiredJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		count, err := s.repo.RequeueExpired(ctx, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(count)
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued expired jobs", "count", totalCount)
	}
	return totalCount, nil
}

// failExhaustedJobs settles lease-expired runs that are out of retries. Each
// failed job has an outstanding debit, so each goes through compensation.
func (s *ReaperService) failExhaustedJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		jobs, err := s.repo.FailExhausted(ctx, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(len(jobs))
		s.compensateAll(ctx, jobs, "processing lease expired and retries were exhausted")
		if len(jobs) == 0 {
			break
		}
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed exhausted jobs", "count", totalCount)
	}
	return totalCount, nil
}

// failStalePendingJobs marks pending jobs older than the configured max age as
// failed. Credits were debited at submission, so these also owe compensation.
func (s *ReaperService) failStalePendingJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		jobs, err := s.repo.FailStalePending(ctx, s.config.PendingMaxAge, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(len(jobs))
		s.compensateAll(ctx, jobs, "job was never picked up for processing")
		if len(jobs) == 0 {
			break
		}
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale pending jobs",
			"count", totalCount,
			"max_age", s.config.PendingMaxAge,
		)
	}
	return totalCount, nil
}

// deleteTerminalJobs deletes completed and failed jobs older than the
// configured ages.
func (s *ReaperService) deleteTerminalJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		count, err := s.repo.DeleteTerminal(ctx, s.config.CompletedMaxAge, s.config.FailedMaxAge, s.config.BatchSize)
		if err != nil {
			return totalCount, err
		}
		totalCount += int64(count)
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted terminal jobs", "count", totalCount)
	}
	return totalCount, nil
}

func (s *ReaperService) compensateAll(ctx context.Context, jobs []*model.Job, reason string) {
	for _, job := range jobs {
		if err := s.compensator.CompensateFailure(ctx, job, reason); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failure compensation error",
				"job_id", job.ID,
				"user_id", job.UserID,
				"error", err,
			)
		}
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
