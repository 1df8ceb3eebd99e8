package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/config"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

func newTestWebhookService(cfg config.WebhookConfig) *WebhookService {
	if cfg.SuccessTimeout == 0 {
		cfg.SuccessTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return NewWebhookService(cfg, discardLogger())
}

func TestAdmitURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https public host", url: "https://hooks.example.com/lens"},
		{name: "http public host", url: "http://hooks.example.com/lens"},
		{name: "public ip", url: "https://93.184.216.34/hook"},
		{name: "ftp scheme", url: "ftp://hooks.example.com/lens", wantErr: true},
		{name: "no host", url: "https:///lens", wantErr: true},
		{name: "loopback ip", url: "http://127.0.0.1:9000/hook", wantErr: true},
		{name: "private ip", url: "http://10.0.0.5/hook", wantErr: true},
		{name: "link local ip", url: "http://169.254.1.1/hook", wantErr: true},
		{name: "unspecified ip", url: "http://0.0.0.0/hook", wantErr: true},
		{name: "bare hostname", url: "http://localhost/hook", wantErr: true},
	}

	svc := newTestWebhookService(config.WebhookConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AdmitURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdmitURL_AllowPrivateHosts(t *testing.T) {
	svc := newTestWebhookService(config.WebhookConfig{AllowPrivateHosts: true})
	assert.NoError(t, svc.AdmitURL("http://127.0.0.1:9000/hook"))
	assert.NoError(t, svc.AdmitURL("http://localhost/hook"))
}

func TestSign(t *testing.T) {
	payload := []byte(`{"status":"error"}`)
	got := Sign("secret", "1700000000", payload)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000."))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
	// Signature covers the timestamp
	assert.NotEqual(t, got, Sign("secret", "1700000001", payload))
}

func TestDeliver_SignsPayload(t *testing.T) {
	type received struct {
		body      []byte
		timestamp string
		signature string
	}
	var got received

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = received{
			body:      body,
			timestamp: r.Header.Get("X-Signature-Timestamp"),
			signature: r.Header.Get("X-Signature"),
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestWebhookService(config.WebhookConfig{MaxAttempts: 1})
	err := svc.Deliver(context.Background(), server.URL, map[string]string{"status": "error"}, "topsecret")
	require.NoError(t, err)

	require.NotEmpty(t, got.timestamp)
	// Receiver can verify by recomputing over the exact body bytes
	assert.Equal(t, Sign("topsecret", got.timestamp, got.body), got.signature)
	assert.JSONEq(t, `{"status":"error"}`, string(got.body))
}

func TestDeliver_NoSecretSkipsSignature(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := newTestWebhookService(config.WebhookConfig{MaxAttempts: 1})
	require.NoError(t, svc.Deliver(context.Background(), server.URL, map[string]string{}, ""))
	assert.Empty(t, signature)
}

func TestDeliver_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestWebhookService(config.WebhookConfig{MaxAttempts: 3, SuccessTimeout: 10 * time.Second})
	require.NoError(t, svc.Deliver(context.Background(), server.URL, map[string]string{}, ""))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeliver_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	svc := newTestWebhookService(config.WebhookConfig{MaxAttempts: 3, SuccessTimeout: 10 * time.Second})
	err := svc.Deliver(context.Background(), server.URL, map[string]string{}, "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
