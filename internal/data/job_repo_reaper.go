package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/interviewlens/lens-api/internal/data/pgxutil"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for lens reaper operations.
const (
	advisoryLockReaperMajor       = 1000
	advisoryLockReaperRequeue     = 1 // minor key for RequeueExpired
	advisoryLockReaperExhausted   = 2 // minor key for FailExhausted
	advisoryLockReaperFailPending = 3 // minor key for FailStalePending
	advisoryLockReaperDelete      = 4 // minor key for DeleteTerminal
)

func (r *JobRepo) withReaperLock(ctx context.Context, minor int, fn func(tx *sql.Tx) error) error {
	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}
			return fn(tx)
		},
	})
}

// RequeueExpired returns lease-expired running jobs with retries left to the
// pending state. Returns the number of jobs requeued.
func (r *JobRepo) RequeueExpired(ctx context.Context, batchSize int) (int, error) {
	var rowsAffected int64
	err := r.withReaperLock(ctx, advisoryLockReaperRequeue, func(tx *sql.Tx) error {
		currentTime := r.timeProvider.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending',
			    lease_expires_at = NULL,
			    retry_count = retry_count + 1,
			    last_error = 'lease expired',
			    updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'running'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
				  AND retry_count < max_retries
				ORDER BY lease_expires_at
				LIMIT $2
			)
		`, currentTime.UTC(), batchSize)
		if err != nil {
			return fmt.Errorf("requeue expired jobs: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// FailExhausted marks lease-expired running jobs that are out of retries as
// failed and returns them so the caller can run the compensation path.
func (r *JobRepo) FailExhausted(ctx context.Context, batchSize int) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.withReaperLock(ctx, advisoryLockReaperExhausted, func(tx *sql.Tx) error {
		currentTime := r.timeProvider.Now()
		rows, err := tx.QueryContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
			    last_error = 'lease expired; retries exhausted',
			    completed_at = $1,
			    lease_expires_at = NULL,
			    updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'running'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
				  AND retry_count >= max_retries
				ORDER BY lease_expires_at
				LIMIT $2
			)
			RETURNING `+jobColumns,
			currentTime.UTC(), batchSize)
		if err != nil {
			return fmt.Errorf("fail exhausted jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return fmt.Errorf("scan exhausted job: %w", scanErr)
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FailStalePending marks pending jobs older than maxAge as failed and returns
// them so the caller can run the compensation path. A stale pending job has
// already been debited, so it owes a refund like any other failed run.
func (r *JobRepo) FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.withReaperLock(ctx, advisoryLockReaperFailPending, func(tx *sql.Tx) error {
		currentTime := r.timeProvider.Now()
		cutoffTime := currentTime.Add(-maxAge)

		rows, err := tx.QueryContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
			    last_error = 'job timed out in pending status',
			    completed_at = $1,
			    updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'pending'
				  AND created_at < $2
				ORDER BY created_at
				LIMIT $3
			)
			RETURNING `+jobColumns,
			currentTime.UTC(), cutoffTime.UTC(), batchSize)
		if err != nil {
			return fmt.Errorf("fail stale pending jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return fmt.Errorf("scan stale job: %w", scanErr)
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteTerminal deletes completed and failed jobs older than the given ages.
// Processes up to batchSize jobs per status per call to prevent long locks.
func (r *JobRepo) DeleteTerminal(ctx context.Context, completedMaxAge, failedMaxAge time.Duration, batchSize int) (int, error) {
	var total int64
	err := r.withReaperLock(ctx, advisoryLockReaperDelete, func(tx *sql.Tx) error {
		currentTime := r.timeProvider.Now()

		for _, target := range []struct {
			status model.JobStatus
			maxAge time.Duration
		}{
			{model.JobStatusCompleted, completedMaxAge},
			{model.JobStatusFailed, failedMaxAge},
		} {
			cutoffTime := currentTime.Add(-target.maxAge)
			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = $1
					  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
					ORDER BY COALESCE(completed_at, updated_at)
					LIMIT $3
				)
			`, target.status, cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("delete old %s jobs: %w", target.status, err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			total += ra
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(total), nil
}
