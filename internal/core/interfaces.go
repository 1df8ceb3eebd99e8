// Package core defines the contracts between the service layer and its
// collaborators (ports in hexagonal architecture). Service implementations
// depend on these interfaces, not concrete implementations.
package core

import (
	"context"
	"io"
	"time"

	"github.com/interviewlens/lens-api/internal/domain/model"
)

// JobRepository defines the interface for durable job queue operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// ReserveNext claims the oldest pending job of the given type with a
	// lease, or returns model.ErrNoJobsAvailable.
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	// WaitForNotification blocks until a new job of the given type may be
	// available or the context is done.
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	// Fail records a failed attempt and returns the job's resulting status:
	// pending when it will be retried, failed when it is permanent. The
	// empty status means the row was no longer running under this caller's
	// lease, in which case the current owner settles the job.
	Fail(ctx context.Context, id, errMsg string) (model.JobStatus, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
}

// JobReaperRepository defines queue maintenance operations used by the reaper.
type JobReaperRepository interface {
	// RequeueExpired returns lease-expired running jobs to pending while
	// they still have retries left, and returns how many were requeued.
	RequeueExpired(ctx context.Context, batchSize int) (int, error)
	// FailExhausted marks lease-expired running jobs that are out of
	// retries as failed and returns them so compensation can run.
	FailExhausted(ctx context.Context, batchSize int) ([]*model.Job, error)
	// FailStalePending fails jobs stuck in pending longer than maxAge.
	FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) ([]*model.Job, error)
	// DeleteTerminal deletes completed/failed jobs older than the given ages.
	DeleteTerminal(ctx context.Context, completedMaxAge, failedMaxAge time.Duration, batchSize int) (int, error)
}

// InterviewRepository defines the interface for interview aggregate persistence.
type InterviewRepository interface {
	// Put writes the aggregate as a whole. It is an upsert on (user_id, id).
	Put(ctx context.Context, interview *model.Interview) error
	GetByID(ctx context.Context, userID string, id int64) (*model.Interview, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*model.InterviewSummary, error)
	Delete(ctx context.Context, userID string, id int64) (bool, error)
}

// UserRepository defines the interface for user accounts and the credit ledger.
type UserRepository interface {
	// EnsureUser creates the user with the starting credit grant if it does
	// not exist yet, then returns the current record.
	EnsureUser(ctx context.Context, id, email string, startingCredits float64) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	// IncrementCredits atomically adjusts the balance by delta (which may be
	// negative) and returns the new balance.
	IncrementCredits(ctx context.Context, id string, delta float64) (float64, error)
}

// ObjectStore defines the interface for blob storage of audio recordings.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	// Download fetches the object into a temp file under dir and returns its path.
	Download(ctx context.Context, key, dir string) (string, error)
	// Move renames an object. The source is removed on success.
	Move(ctx context.Context, oldKey, newKey string) error
	Delete(ctx context.Context, key string) error
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Transcriber converts an audio reference into normalized transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) ([]model.TranscriptSegment, error)
}

// Generator invokes the generative model with an assembled prompt and
// returns its raw text response.
type Generator interface {
	Generate(ctx context.Context, prompt string, mode model.AnalysisMode) (string, error)
}

// WaveformExtractor derives client-side visualization data from a local audio file.
type WaveformExtractor interface {
	Duration(ctx context.Context, path string) (float64, error)
	Envelope(ctx context.Context, path string, samples int) ([]float64, error)
}

// Notifier delivers signed webhook payloads. Delivery errors are reported to
// the caller for logging but never abort a pipeline run.
type Notifier interface {
	Deliver(ctx context.Context, url string, payload any, secret string) error
}

// TokenVerifier validates a raw bearer token and extracts the caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (model.Identity, error)
}

// TokenCache memoizes verified bearer tokens. Implementations key entries by
// token digest; a miss is reported as an error from Get.
type TokenCache interface {
	Get(ctx context.Context, rawToken string) (model.Identity, error)
	Save(ctx context.Context, rawToken string, identity model.Identity) error
}

// FailureCompensator settles a job that has permanently failed: refund the
// debited credit exactly once, record the failure, and notify the caller's
// webhook. Both the dispatcher and the reaper invoke it when a job exhausts
// its retries.
type FailureCompensator interface {
	CompensateFailure(ctx context.Context, job *model.Job, reason string) error
}
