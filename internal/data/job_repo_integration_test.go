package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/domain/model"
	"github.com/interviewlens/lens-api/internal/testutil"
)

func analysisJobRequest(userID string) *model.CreateJobRequest {
	return &model.CreateJobRequest{
		Type:       model.JobTypeAnalysis,
		UserID:     userID,
		Payload:    json.RawMessage(`{"interview_id": 1, "audio_ref": "audio/user-1/1.mp3"}`),
		MaxRetries: 2,
	}
}

// TestJobRepo_Integration_CreateAndReserve tests the full flow of creating and reserving jobs.
func TestJobRepo_Integration_CreateAndReserve(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		first, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
		require.NoError(t, err)
		second, err := repo.Create(context.Background(), analysisJobRequest("user-2"))
		require.NoError(t, err)

		// Jobs come out in enqueue order
		reserved1, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)
		assert.Equal(t, first.ID, reserved1.ID)
		assert.Equal(t, model.JobStatusRunning, reserved1.Status)

		reserved2, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)
		assert.Equal(t, second.ID, reserved2.ID)

		// No more jobs available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_JobLifecycle tests the complete lifecycle of a job.
func TestJobRepo_Integration_JobLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		// Use a fixed time provider to control time for retry delays
		timeProvider := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{
			RetryDelaySeconds: 5,
			TimeProvider:      timeProvider,
		})

		// 1. Create a job
		job, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, "user-1", job.UserID)

		// 2. Reserve the job
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)
		assert.NotNil(t, reserved.StartedAt)
		assert.NotNil(t, reserved.LeaseExpiresAt)
		assert.JSONEq(t, string(job.Payload), string(reserved.Payload))

		// 3. Extend the lease (heartbeat)
		success, err := repo.Heartbeat(context.Background(), job.ID, 60)
		require.NoError(t, err)
		assert.True(t, success)

		// 4. Fail the job (first attempt); the queue reports the retry transition
		status, err := repo.Fail(context.Background(), job.ID, "first failure")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, status)

		// 5. The job is pending again but scheduled behind the retry delay
		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		timeProvider.AddTime(6 * time.Second)

		retryJob, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, retryJob.ID)
		assert.Equal(t, 1, retryJob.RetryCount)
		require.NotNil(t, retryJob.LastError)
		assert.Equal(t, "first failure", *retryJob.LastError)

		// 6. Complete the job on retry
		success, err = repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, success)

		final, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, final.Status)
		assert.NotNil(t, final.CompletedAt)
		assert.Nil(t, final.LastError)
		assert.Nil(t, final.LeaseExpiresAt)
	})
}

// TestJobRepo_Integration_FailExhaustsRetries verifies the terminal transition.
func TestJobRepo_Integration_FailExhaustsRetries(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		req := analysisJobRequest("user-1")
		req.MaxRetries = 0
		job, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)

		status, err := repo.Fail(context.Background(), job.ID, "boom")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, status)

		failed, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		assert.NotNil(t, failed.CompletedAt)
		require.NotNil(t, failed.LastError)
		assert.Equal(t, "boom", *failed.LastError)

		// The row is terminal now, so a late Fail from a stale worker is a no-op
		status, err = repo.Fail(context.Background(), job.ID, "late failure")
		require.NoError(t, err)
		assert.Empty(t, status)
	})
}

// TestJobRepo_Integration_ExpiredLeaseIsRequeued verifies crash recovery: a
// running job whose lease lapsed becomes reservable again.
func TestJobRepo_Integration_ExpiredLeaseIsRequeued(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		timeProvider := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: timeProvider})

		job, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
		require.NoError(t, err)

		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 10)
		require.NoError(t, err)

		// Lease still live: nothing to reserve
		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 10)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		timeProvider.AddTime(11 * time.Second)

		requeued, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 10)
		require.NoError(t, err)
		assert.Equal(t, job.ID, requeued.ID)
		assert.Equal(t, 1, requeued.RetryCount)
		require.NotNil(t, requeued.LastError)
		assert.Equal(t, "lease expired", *requeued.LastError)
	})
}

func TestJobRepo_Integration_HeartbeatOnNonRunningJob(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		job, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
		require.NoError(t, err)

		// Pending jobs carry no lease to refresh
		success, err := repo.Heartbeat(context.Background(), job.ID, 30)
		require.NoError(t, err)
		assert.False(t, success)

		success, err = repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.False(t, success)
	})
}

func TestJobRepo_Integration_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Integration_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		for i := 0; i < 3; i++ {
			_, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
			require.NoError(t, err)
		}

		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)
		_, err = repo.Complete(context.Background(), reserved.ID)
		require.NoError(t, err)

		_, err = repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
		require.NoError(t, err)

		stats, err := repo.Stats(context.Background(), model.JobTypeAnalysis)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 1, stats.Running)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 0, stats.Failed)
	})
}

// TestJobRepo_Integration_ConcurrentReservation verifies SKIP LOCKED hands
// each job to exactly one worker.
func TestJobRepo_Integration_ConcurrentReservation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		const jobCount = 5
		for i := 0; i < jobCount; i++ {
			_, err := repo.Create(context.Background(), analysisJobRequest("user-1"))
			require.NoError(t, err)
		}

		seen := make(chan string, jobCount)
		runner := testutil.NewConcurrentTestRunner(t, db)

		var workers []func() error
		for i := 0; i < jobCount; i++ {
			workers = append(workers, func() error {
				job, err := repo.ReserveNext(context.Background(), model.JobTypeAnalysis, 30)
				if err != nil {
					return err
				}
				seen <- job.ID
				return nil
			})
		}

		errs := runner.RunConcurrent(workers...)
		runner.AssertNoErrors(errs)
		close(seen)

		unique := make(map[string]bool)
		for id := range seen {
			assert.False(t, unique[id], "job %s reserved twice", id)
			unique[id] = true
		}
		assert.Len(t, unique, jobCount)
	})
}
