package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	"github.com/interviewlens/lens-api/internal/observability/notify"
	"github.com/interviewlens/lens-api/internal/service/failurenotifier"
)

// CompensationServiceOptions groups dependencies for CompensationService.
type CompensationServiceOptions struct {
	Credits    *CreditService
	Interviews core.InterviewRepository
	Store      core.ObjectStore
	Notifier   core.Notifier
	Ops        *failurenotifier.Service
	Webhook    config.WebhookConfig
	Logger     *slog.Logger
	Now        func() time.Time
}

// CompensationService settles permanently failed jobs. It runs once per job,
// at the moment the job transitions to its terminal failed state, so the
// refund happens exactly once per debit.
type CompensationService struct {
	credits    *CreditService
	interviews core.InterviewRepository
	store      core.ObjectStore
	notifier   core.Notifier
	ops        *failurenotifier.Service
	webhook    config.WebhookConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewCompensationService validates the options and constructs a CompensationService.
func NewCompensationService(opts CompensationServiceOptions) (*CompensationService, error) {
	if opts.Credits == nil || opts.Interviews == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("credits, interviews, and notifier are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CompensationService{
		credits:    opts.Credits,
		interviews: opts.Interviews,
		store:      opts.Store,
		notifier:   opts.Notifier,
		ops:        opts.Ops,
		webhook:    opts.Webhook,
		logger:     logger,
		now:        now,
	}, nil
}

// failurePayload is the webhook body for an aborted run.
type failurePayload struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// CompensateFailure refunds the debit, persists a failure record so the
// outcome stays visible without a webhook, releases the staged blob, and
// delivers the failure webhook. Only the refund and the failure record use
// error returns; notification and cleanup problems are logged.
func (s *CompensationService) CompensateFailure(ctx context.Context, job *model.Job, reason string) error {
	var analysisJob model.AnalysisJob
	if err := json.Unmarshal(job.Payload, &analysisJob); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	analysisJob.JobID = job.ID

	s.logger.InfoContext(ctx, "compensating failed job",
		"job_id", job.ID,
		"user_id", job.UserID,
		"reason", reason,
	)

	var firstErr error
	if err := s.credits.Refund(ctx, job.UserID); err != nil {
		// Refund is best-effort by contract; record it loudly and move on
		s.logger.ErrorContext(ctx, "refund failed", "job_id", job.ID, "user_id", job.UserID, "error", err)
		firstErr = err
	}

	if err := s.persistFailureRecord(ctx, &analysisJob, reason); err != nil {
		s.logger.ErrorContext(ctx, "persist failure record failed", "job_id", job.ID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	s.releaseStagedBlob(ctx, &analysisJob)
	s.notifyFailure(ctx, &analysisJob, reason)
	s.escalate(ctx, job, reason)

	return firstErr
}

// escalate pages the operators. A permanent failure already cost the user a
// retry budget and a wait, so someone should look at it.
func (s *CompensationService) escalate(ctx context.Context, job *model.Job, reason string) {
	if s.ops == nil || !s.ops.Enabled() {
		return
	}
	errText := reason
	if job.LastError != nil && *job.LastError != "" {
		errText = *job.LastError
	}
	s.ops.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:      job.ID,
		JobType:    string(job.Type),
		UserID:     job.UserID,
		Reason:     reason,
		Error:      errText,
		OccurredAt: s.now(),
	})
}

// persistFailureRecord writes a failed interview row so the user can see the
// outcome even when no webhook was configured.
func (s *CompensationService) persistFailureRecord(ctx context.Context, job *model.AnalysisJob, reason string) error {
	interviewID := s.now().UnixMilli()
	title := job.Config.Title
	if title == "" {
		title = fmt.Sprintf("Interview-%d", interviewID)
	}
	errText := reason

	return s.interviews.Put(ctx, &model.Interview{
		ID:               interviewID,
		UserID:           job.UserID,
		Title:            title,
		Status:           model.InterviewStatusFailed,
		ContentType:      job.ContentType,
		OriginalFilename: job.OriginalFilename,
		Error:            &errText,
	})
}

func (s *CompensationService) releaseStagedBlob(ctx context.Context, job *model.AnalysisJob) {
	if s.store == nil || job.BlobRef == "" {
		return
	}
	if err := s.store.Delete(ctx, job.BlobRef); err != nil {
		s.logger.WarnContext(ctx, "staged blob cleanup failed",
			"job_id", job.JobID,
			"blob_ref", job.BlobRef,
			"error", err,
		)
	}
}

func (s *CompensationService) notifyFailure(ctx context.Context, job *model.AnalysisJob, reason string) {
	if job.WebhookURL == "" {
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.webhook.FailureTimeout)
	defer cancel()

	payload := failurePayload{
		Status:    "error",
		Error:     reason,
		Timestamp: s.now().Unix(),
	}
	if err := s.notifier.Deliver(notifyCtx, job.WebhookURL, payload, job.WebhookSecret); err != nil {
		s.logger.ErrorContext(ctx, "failure webhook delivery failed",
			"job_id", job.JobID,
			"url", job.WebhookURL,
			"error", err,
		)
	}
}
