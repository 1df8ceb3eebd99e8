package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/internal/core"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// CreditService meters pipeline usage against per-user balances. Balances are
// only ever mutated through atomic increments on the repository.
type CreditService struct {
	users   core.UserRepository
	jobCost float64
	logger  *slog.Logger
}

// NewCreditService creates a CreditService with the configured per-job cost.
func NewCreditService(users core.UserRepository, jobCost float64, logger *slog.Logger) *CreditService {
	return &CreditService{
		users:   users,
		jobCost: jobCost,
		logger:  logger,
	}
}

// Balance returns the user's current credit balance.
func (s *CreditService) Balance(ctx context.Context, userID string) (float64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	return user.Credits, nil
}

// Debit charges one job's cost. Admission requires the full cost up front;
// the debit itself is a single atomic increment.
func (s *CreditService) Debit(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user.Credits < s.jobCost {
		return apperrors.PaymentRequiredf("insufficient credits: %.0f required", s.jobCost)
	}

	balance, err := s.users.IncrementCredits(ctx, userID, -s.jobCost)
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "credit debited",
			"user_id", userID,
			"cost", s.jobCost,
			"balance", balance,
		)
	}
	return nil
}

// Refund returns one job's cost to the user. Callers invoke it exactly once
// per aborted job; the increment itself is unconditional.
func (s *CreditService) Refund(ctx context.Context, userID string) error {
	balance, err := s.users.IncrementCredits(ctx, userID, s.jobCost)
	if err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "credit refunded",
			"user_id", userID,
			"amount", s.jobCost,
			"balance", balance,
		)
	}
	return nil
}
