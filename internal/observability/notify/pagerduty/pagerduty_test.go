package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/observability/notify"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{},
	}
}

func TestNewClient_RequiresRoutingKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSendJobFailure_BuildsEventsAPIPayload(t *testing.T) {
	var got map[string]any
	client, err := NewClient(Config{
		RoutingKey: "rk-123",
		Client: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, APIEndpoint, req.URL.String())
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return stubResponse(http.StatusAccepted, `{"status":"success"}`), nil
		})},
	})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{
		JobID:      "job-1",
		JobType:    "analysis",
		UserID:     "user-1",
		Reason:     "retries exhausted",
		Error:      "worker returned 500",
		OccurredAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "rk-123", got["routing_key"])
	assert.Equal(t, "trigger", got["event_action"])
	assert.Equal(t, "analysis:job-1", got["dedup_key"])

	payload, _ := got["payload"].(map[string]any)
	require.NotNil(t, payload)
	assert.Equal(t, "Job job-1 (analysis) failed", payload["summary"])
	assert.Equal(t, notify.SeverityCritical, payload["severity"])
	assert.Equal(t, "lens-api", payload["source"])

	details, _ := payload["custom_details"].(map[string]any)
	require.NotNil(t, details)
	assert.Equal(t, "user-1", details["user_id"])
	assert.Equal(t, "retries exhausted", details["reason"])
	assert.Equal(t, "worker returned 500", details["error"])
}

func TestSendJobFailure_SurfacesAPIError(t *testing.T) {
	client, err := NewClient(Config{
		RoutingKey: "rk-123",
		Client: &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return stubResponse(http.StatusBadRequest, `{"status":"invalid event"}`), nil
		})},
	})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event")
}
