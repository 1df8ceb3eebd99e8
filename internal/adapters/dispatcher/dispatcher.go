// Package dispatcher pulls analysis jobs from the durable queue and drives
// them through the worker HTTP endpoint.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	"github.com/interviewlens/lens-api/internal/observability/metrics"
	"github.com/interviewlens/lens-api/internal/observability/statsd"
)

const (
	maxResponseBodyBytes = 4 * 1024 // truncate worker error bodies before storing on the job
	processAudioPath     = "/v1/tasks/process-audio"
	statsInterval        = time.Minute
)

// Options configures the dispatcher adapter.
type Options struct {
	Jobs        core.JobRepository
	Compensator core.FailureCompensator
	Logger      *slog.Logger
	HTTPClient  *http.Client
	Metrics     statsd.Sink
	Config      config.DispatcherConfig
}

// Dispatcher reserves pending analysis jobs and executes each one by posting
// it to the worker endpoint. Permanent failures are settled through the
// compensator.
type Dispatcher struct {
	jobs        core.JobRepository
	compensator core.FailureCompensator
	http        *http.Client
	logger      *slog.Logger
	metrics     statsd.Sink
	workerURL   string
	lease       time.Duration
	workers     int
}

// New validates the options and constructs a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Compensator == nil {
		return nil, errors.New("failure compensator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Config.RequestTimeout}
	}

	return &Dispatcher{
		jobs:        opts.Jobs,
		compensator: opts.Compensator,
		http:        hc,
		logger:      logger,
		metrics:     opts.Metrics,
		workerURL:   opts.Config.WorkerBaseURL + processAudioPath,
		lease:       opts.Config.JobLease,
		workers:     opts.Config.Concurrency,
	}, nil
}

// Run starts the notification listener and worker goroutines, and processes
// jobs until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "starting dispatcher",
		"workers", d.workers,
		"lease", d.lease,
		"worker_url", d.workerURL,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notify := make(chan struct{}, 1)
	go d.listenLoop(ctx, notify)
	go d.statsLoop(ctx)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.workerLoop(ctx, notify); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// listenLoop converts queue notifications into non-blocking wakeups for
// sleeping workers.
func (d *Dispatcher) listenLoop(ctx context.Context, notify chan<- struct{}) {
	for ctx.Err() == nil {
		if err := d.jobs.WaitForNotification(ctx, model.JobTypeAnalysis); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.WarnContext(ctx, "queue notification wait failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

// statsLoop periodically publishes queue depth gauges for the job type this
// dispatcher drains.
func (d *Dispatcher) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := d.jobs.Stats(ctx, model.JobTypeAnalysis)
			if err != nil {
				if ctx.Err() == nil {
					d.logger.WarnContext(ctx, "queue stats read failed", "error", err)
				}
				continue
			}
			metrics.EmitQueueDepth(d.metrics, string(model.JobTypeAnalysis), stats)
		}
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	// Fallback poll covers notifications delivered while all workers were busy.
	poll := time.NewTicker(30 * time.Second)
	defer poll.Stop()

	for ctx.Err() == nil {
		job, err := d.jobs.ReserveNext(ctx, model.JobTypeAnalysis, int(d.lease.Seconds()))
		switch {
		case err == nil:
			if job != nil {
				d.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			select {
			case <-ctx.Done():
				return nil
			case <-notify:
			case <-poll.C:
			}
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (d *Dispatcher) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	d.logger.InfoContext(ctx, "dispatching job",
		"job_id", job.ID,
		"user_id", job.UserID,
		"attempt", job.RetryCount+1,
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go d.heartbeatLoop(hbCtx, job.ID)

	if err := d.execute(ctx, job); err != nil {
		metrics.EmitJobLifecycle(d.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: "failed",
			Result:     metrics.ResultError,
			Duration:   time.Since(start),
			Err:        err,
		})
		d.failJob(ctx, job, err)
		return
	}

	if _, err := d.jobs.Complete(ctx, job.ID); err != nil {
		d.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		return
	}
	metrics.EmitJobLifecycle(d.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: "completed",
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})
	d.logger.InfoContext(ctx, "job completed",
		"job_id", job.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// heartbeatLoop extends the lease while the worker request is in flight so a
// long transcription does not get requeued under us.
func (d *Dispatcher) heartbeatLoop(ctx context.Context, jobID string) {
	interval := d.lease / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := d.jobs.Heartbeat(ctx, jobID, int(d.lease.Seconds())); err != nil {
				d.logger.WarnContext(ctx, "heartbeat failed", "job_id", jobID, "error", err)
			} else if !ok {
				// lease lost; the run will be resolved by whoever owns it now
				return
			}
		}
	}
}

// execute posts the analysis job to the worker endpoint and interprets the
// response. Any non-OK outcome is an error to be retried or settled.
func (d *Dispatcher) execute(ctx context.Context, job *model.Job) error {
	var analysisJob model.AnalysisJob
	if err := json.Unmarshal(job.Payload, &analysisJob); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	analysisJob.JobID = job.ID

	body, err := json.Marshal(&analysisJob)
	if err != nil {
		return fmt.Errorf("encode worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.workerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("worker request: %w", err)
	}
	defer resp.Body.Close()

	respBody, truncated, readErr := readResponseBody(resp.Body)
	if readErr != nil {
		return fmt.Errorf("read worker response: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		if truncated {
			respBody += "..."
		}
		return fmt.Errorf("worker returned %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(respBody), &out); err != nil {
		return fmt.Errorf("decode worker response: %w", err)
	}
	if out.Status != "completed" {
		return fmt.Errorf("worker reported status %q", out.Status)
	}
	return nil
}

// failJob records the failure and, when the queue marks the job as
// permanently failed, settles it through the compensation path. The queue
// row decides permanence; the in-memory retry count can be stale after a
// lease expiry and requeue.
func (d *Dispatcher) failJob(ctx context.Context, job *model.Job, jobErr error) {
	d.logger.WarnContext(ctx, "job attempt failed",
		"job_id", job.ID,
		"attempt", job.RetryCount+1,
		"max_retries", job.MaxRetries,
		"error", jobErr,
	)

	status, err := d.jobs.Fail(ctx, job.ID, jobErr.Error())
	if err != nil {
		d.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", err, "original_error", jobErr)
		return
	}
	if status == "" {
		// Row no longer running under our lease; its current owner settles it.
		d.logger.WarnContext(ctx, "job ownership lost before failure was recorded", "job_id", job.ID)
		return
	}
	if status != model.JobStatusFailed {
		return
	}
	if err := d.compensator.CompensateFailure(ctx, job, jobErr.Error()); err != nil {
		d.logger.ErrorContext(ctx, "failure compensation error", "job_id", job.ID, "error", err)
	}
}

func readResponseBody(body io.Reader) (string, bool, error) {
	if body == nil {
		return "", false, nil
	}
	limited := io.LimitReader(body, maxResponseBodyBytes+1)
	data, readErr := io.ReadAll(limited)
	truncated := len(data) > maxResponseBodyBytes
	if truncated {
		data = data[:maxResponseBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && readErr == nil {
			readErr = drainErr
		}
	}
	return string(data), truncated, readErr
}
