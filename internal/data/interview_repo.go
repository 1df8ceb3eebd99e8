package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/interviewlens/lens-api/internal/errors"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// ErrInterviewNotFound is returned when an interview is not found. It carries
// the not_found code so HTTP handlers map it to a 404 without translation.
var ErrInterviewNotFound = apperrors.NotFound("interview not found")

// InterviewRepo provides database operations for interview aggregates.
type InterviewRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewInterviewRepo creates a new InterviewRepo instance.
func NewInterviewRepo(db *sql.DB, logger *slog.Logger) *InterviewRepo {
	return &InterviewRepo{
		DB:     db,
		logger: logger,
	}
}

// Put writes the aggregate as a whole. It is an upsert on (user_id, id) so a
// redelivered job that re-runs the pipeline overwrites rather than duplicates.
func (r *InterviewRepo) Put(ctx context.Context, interview *model.Interview) error {
	if interview == nil {
		return errors.New("interview is required")
	}
	if err := interview.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid interview")
	}

	transcript, err := marshalOrDefault(interview.Transcript, `[]`)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	analysis, err := marshalOrDefault(interview.Analysis, `{}`)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	waveform, err := marshalOrDefault(interview.Waveform, `[]`)
	if err != nil {
		return fmt.Errorf("marshal waveform: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO interviews (
			id, user_id, title, status,
			transcript, transcript_text, analysis,
			audio_ref, content_type, original_filename,
			audio_duration_s, waveform, error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			transcript = EXCLUDED.transcript,
			transcript_text = EXCLUDED.transcript_text,
			analysis = EXCLUDED.analysis,
			audio_ref = EXCLUDED.audio_ref,
			content_type = EXCLUDED.content_type,
			original_filename = EXCLUDED.original_filename,
			audio_duration_s = EXCLUDED.audio_duration_s,
			waveform = EXCLUDED.waveform,
			error = EXCLUDED.error,
			updated_at = now()
	`,
		interview.ID,
		interview.UserID,
		interview.Title,
		interview.Status,
		transcript,
		interview.TranscriptText,
		analysis,
		interview.AudioRef,
		interview.ContentType,
		interview.OriginalFilename,
		interview.AudioDurationS,
		waveform,
		interview.Error,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return apperrors.Wrapf(err, apperrors.ErrCodeForeignKey, "unknown user %s", interview.UserID)
		}
		return fmt.Errorf("put interview: %w", err)
	}
	return nil
}

// GetByID retrieves one interview owned by userID.
func (r *InterviewRepo) GetByID(ctx context.Context, userID string, id int64) (*model.Interview, error) {
	interview := &model.Interview{}
	var (
		transcript, analysis, waveform []byte
		audioRef, errText              sql.NullString
		duration                       sql.NullFloat64
	)

	err := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, title, status,
		       transcript, transcript_text, analysis,
		       audio_ref, content_type, original_filename,
		       audio_duration_s, waveform, error,
		       created_at, updated_at
		FROM interviews
		WHERE user_id = $1 AND id = $2
	`, userID, id).Scan(
		&interview.ID,
		&interview.UserID,
		&interview.Title,
		&interview.Status,
		&transcript,
		&interview.TranscriptText,
		&analysis,
		&audioRef,
		&interview.ContentType,
		&interview.OriginalFilename,
		&duration,
		&waveform,
		&errText,
		&interview.CreatedAt,
		&interview.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}

	if len(transcript) > 0 {
		if umErr := json.Unmarshal(transcript, &interview.Transcript); umErr != nil {
			return nil, fmt.Errorf("decode transcript: %w", umErr)
		}
	}
	if len(analysis) > 0 {
		if umErr := json.Unmarshal(analysis, &interview.Analysis); umErr != nil {
			return nil, fmt.Errorf("decode analysis: %w", umErr)
		}
	}
	if len(waveform) > 0 {
		if umErr := json.Unmarshal(waveform, &interview.Waveform); umErr != nil {
			return nil, fmt.Errorf("decode waveform: %w", umErr)
		}
	}

	interview.AudioRef = cloneNullableString(audioRef)
	interview.Error = cloneNullableString(errText)
	if duration.Valid {
		d := duration.Float64
		interview.AudioDurationS = &d
	}

	return interview, nil
}

// List returns the caller's interviews, newest first.
func (r *InterviewRepo) List(ctx context.Context, userID string, limit, offset int) ([]*model.InterviewSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, status, audio_duration_s, created_at
		FROM interviews
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var summaries []*model.InterviewSummary
	for rows.Next() {
		s := &model.InterviewSummary{}
		var duration sql.NullFloat64
		if scanErr := rows.Scan(&s.ID, &s.Title, &s.Status, &duration, &s.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("scan interview summary: %w", scanErr)
		}
		if duration.Valid {
			d := duration.Float64
			s.AudioDurationS = &d
		}
		summaries = append(summaries, s)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return summaries, nil
}

// Delete removes one interview owned by userID. Returns false when nothing matched.
func (r *InterviewRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM interviews
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return false, fmt.Errorf("delete interview: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func marshalOrDefault(v any, def string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(def), nil
	}
	return data, nil
}
