package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// InterviewService exposes read and delete operations over stored interviews.
type InterviewService struct {
	repo   core.InterviewRepository
	store  core.ObjectStore
	logger *slog.Logger
}

// NewInterviewService creates an InterviewService.
func NewInterviewService(repo core.InterviewRepository, store core.ObjectStore, logger *slog.Logger) *InterviewService {
	return &InterviewService{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// List returns the caller's interviews, newest first.
func (s *InterviewService) List(ctx context.Context, userID string, limit, offset int) ([]*model.InterviewSummary, error) {
	return s.repo.List(ctx, userID, limit, offset)
}

// Get returns one interview owned by the caller.
func (s *InterviewService) Get(ctx context.Context, userID string, id int64) (*model.Interview, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// AudioURL returns a short-lived signed URL for the interview's audio.
func (s *InterviewService) AudioURL(ctx context.Context, userID string, id int64, ttl time.Duration) (string, error) {
	interview, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if interview.AudioRef == nil || *interview.AudioRef == "" {
		return "", apperrors.NotFoundf("interview %d has no audio", id)
	}
	return s.store.SignedReadURL(ctx, *interview.AudioRef, ttl)
}

// Delete removes the interview row and releases its audio object. Audio
// cleanup is best-effort; the row removal decides the outcome.
func (s *InterviewService) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	interview, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil || !deleted {
		return deleted, err
	}

	if s.store != nil && interview.AudioRef != nil && *interview.AudioRef != "" {
		if delErr := s.store.Delete(ctx, *interview.AudioRef); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "audio object cleanup failed",
				"interview_id", id,
				"audio_ref", *interview.AudioRef,
				"error", delErr,
			)
		}
	}
	return true, nil
}
