package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/observability/notify"
)

func TestNewClient_RequiresWebhookURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSendJobFailure_FormatsMessage(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		WebhookURL:         server.URL,
		Channel:            "#lens-alerts",
		DashboardURLPrefix: "https://admin.example.com/users",
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

	assert.Equal(t, "#lens-alerts", got["channel"])
	assert.Equal(t, "lens-api", got["username"])
	text, _ := got["text"].(string)
	assert.Contains(t, text, "`job-1`")
	assert.Contains(t, text, "(analysis)")
	assert.Contains(t, text, "retries exhausted")
	assert.Contains(t, text, "worker returned 500")
	// User links into the dashboard
	assert.Contains(t, text, "<https://admin.example.com/users/user-1|user-1>")
	assert.Contains(t, text, "2026-08-28T12:00:00Z")
}

func TestSendJobFailure_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{WebhookURL: server.URL, RetryLimit: 2})
	require.NoError(t, err)

	require.NoError(t, client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendJobFailure_ExhaustedRetriesReturnsLastError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no_service", http.StatusGone)
	}))
	defer server.Close()

	client, err := NewClient(Config{WebhookURL: server.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_service")
}
