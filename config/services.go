package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (ingress, worker, and read API).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDispatcher runs the queue dispatcher that delivers jobs to the worker endpoint.
	ServiceModeDispatcher ServiceMode = "dispatcher"
	// ServiceModeReaper runs the job reaper for lease expiry and cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeDispatcher,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeDispatcher, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, dispatcher, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatcherConfig contains queue dispatcher service configuration.
type DispatcherConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"DISPATCHER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease an analysis job. A lease must cover
	// a full pipeline run (download, transcription, model call, webhook).
	JobLease time.Duration `env:"DISPATCHER_JOB_LEASE" envDefault:"10m"`

	// WorkerBaseURL is the base URL of the worker HTTP surface that jobs are
	// POSTed to. Defaults to the local server.
	WorkerBaseURL string `env:"DISPATCHER_WORKER_BASE_URL" envDefault:"http://localhost:8080"`

	// RequestTimeout is the timeout for one worker POST. It must exceed the
	// pipeline's worst-case run so the queue does not redeliver live jobs.
	RequestTimeout time.Duration `env:"DISPATCHER_REQUEST_TIMEOUT" envDefault:"9m"`

	// MaxRetries is the number of queue redeliveries before a job is failed.
	MaxRetries int `env:"DISPATCHER_MAX_RETRIES" envDefault:"2"`
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *DispatcherConfig) Sanitize() {
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.JobLease < 30*time.Second {
		d.JobLease = 30 * time.Second
	}
	if d.RequestTimeout < 10*time.Second {
		d.RequestTimeout = 10 * time.Second
	}
	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
