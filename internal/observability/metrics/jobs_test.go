package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/domain/model"
)

type recordedMetric struct {
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	counts  []recordedMetric
	gauges  []recordedMetric
	timings []recordedMetric
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.counts = append(r.counts, recordedMetric{name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.gauges = append(r.gauges, recordedMetric{name: name, value: value, tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.timings = append(r.timings, recordedMetric{name: name, value: float64(value), tags: tags})
}

func TestEmitJobLifecycle(t *testing.T) {
	sink := &recordingSink{}

	EmitJobLifecycle(sink, JobMetric{
		JobType:    "analysis",
		Transition: "failed",
		Result:     ResultError,
		Duration:   250 * time.Millisecond,
		Err:        errors.New("worker returned 502"),
	})

	require.Len(t, sink.counts, 1)
	assert.Equal(t, "job.transition", sink.counts[0].name)
	assert.Equal(t, "analysis", sink.counts[0].tags["job_type"])
	assert.NotEmpty(t, sink.counts[0].tags["error_class"])
	require.Len(t, sink.timings, 1)
	assert.Equal(t, "job.duration", sink.timings[0].name)
}

func TestEmitQueueDepth(t *testing.T) {
	sink := &recordingSink{}

	EmitQueueDepth(sink, "analysis", &model.JobStats{Pending: 3, Running: 1, Completed: 40, Failed: 2})

	require.Len(t, sink.gauges, 4)
	byName := map[string]recordedMetric{}
	for _, g := range sink.gauges {
		byName[g.name] = g
	}
	assert.Equal(t, 3.0, byName["job.queue.pending"].value)
	assert.Equal(t, 1.0, byName["job.queue.running"].value)
	assert.Equal(t, 40.0, byName["job.queue.completed"].value)
	assert.Equal(t, 2.0, byName["job.queue.failed"].value)
	assert.Equal(t, "analysis", byName["job.queue.pending"].tags["job_type"])
}

func TestEmitQueueDepth_NilSinkAndStats(t *testing.T) {
	EmitQueueDepth(nil, "analysis", &model.JobStats{})

	sink := &recordingSink{}
	EmitQueueDepth(sink, "analysis", nil)
	assert.Empty(t, sink.gauges)
}
