package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// ErrUserNotFound is returned when a user is not found. It carries the
// not_found code so HTTP handlers map it to a 404 without translation.
var ErrUserNotFound = apperrors.NotFound("user not found")

// UserRepo provides database operations for user accounts and the credit ledger.
type UserRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewUserRepo creates a new UserRepo instance.
func NewUserRepo(db *sql.DB, logger *slog.Logger) *UserRepo {
	return &UserRepo{
		DB:     db,
		logger: logger,
	}
}

const userColumns = `
  id,
  email,
  credits,
  webhook_secret,
  created_at,
  updated_at
`

// EnsureUser creates the user with the starting credit grant if it does not
// exist yet, then returns the current record. The insert is idempotent so
// concurrent first requests from the same user cannot double-grant.
func (r *UserRepo) EnsureUser(ctx context.Context, id, email string, startingCredits float64) (*model.User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, credits)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, email, startingCredits)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if r.logger != nil {
		if rows, raErr := res.RowsAffected(); raErr == nil && rows > 0 {
			r.logger.InfoContext(ctx, "user provisioned",
				"user_id", id,
				"starting_credits", startingCredits,
			)
		}
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var webhookSecret sql.NullString

	err := r.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Credits,
		&webhookSecret,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.WebhookSecret = cloneNullableString(webhookSecret)
	return user, nil
}

// IncrementCredits atomically adjusts the balance by delta (which may be
// negative) and returns the new balance. The ledger is never mutated through
// read-modify-write from application code.
func (r *UserRepo) IncrementCredits(ctx context.Context, id string, delta float64) (float64, error) {
	var balance float64
	err := r.DB.QueryRowContext(ctx, `
		UPDATE users
		SET credits = credits + $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING credits
	`, id, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment credits: %w", err)
	}
	return balance, nil
}

// SetWebhookSecret stores the user's default webhook secret.
func (r *UserRepo) SetWebhookSecret(ctx context.Context, id, secret string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET webhook_secret = NULLIF($2, ''),
		    updated_at = now()
		WHERE id = $1
	`, id, secret)
	if err != nil {
		return fmt.Errorf("set webhook secret: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
