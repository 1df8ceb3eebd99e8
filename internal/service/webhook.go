package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"

	"github.com/interviewlens/lens-api/config"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

const (
	headerSignatureTimestamp = "X-Signature-Timestamp"
	headerSignature          = "X-Signature"
)

// WebhookService delivers signed JSON payloads to caller-supplied URLs.
type WebhookService struct {
	cfg        config.WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewWebhookService creates a WebhookService from the webhook configuration.
func NewWebhookService(cfg config.WebhookConfig, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		now:        time.Now,
	}
}

// AdmitURL validates a webhook URL at submission time: http(s) scheme, a host
// with a registrable public-suffix domain, and no loopback or private
// addresses. The private-host check can be disabled for local development.
func (s *WebhookService) AdmitURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.ValidationField("webhook_url", "webhook_url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperrors.ValidationField("webhook_url", "webhook_url must use http or https")
	}
	host := u.Hostname()
	if host == "" {
		return apperrors.ValidationField("webhook_url", "webhook_url has no host")
	}

	if s.cfg.AllowPrivateHosts {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return apperrors.ValidationField("webhook_url", "webhook_url must not target a private address")
		}
		return nil
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return apperrors.ValidationField("webhook_url", "webhook_url host must be a registrable public domain")
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 over "{timestamp}.{canonicalPayload}".
func Sign(secret string, timestamp string, canonicalPayload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(canonicalPayload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver canonicalizes the payload, signs it when a secret is present, and
// POSTs it with bounded retry. The body on the wire is exactly the signed
// bytes so receivers can verify without re-canonicalizing.
func (s *WebhookService) Deliver(ctx context.Context, rawURL string, payload any, secret string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("canonicalize webhook payload: %w", err)
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	signature := ""
	if secret != "" {
		signature = Sign(secret, timestamp, body)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SuccessTimeout)
		defer cancel()
	}

	attempt := 0
	operation := func() error {
		attempt++
		return s.post(ctx, rawURL, body, timestamp, signature, attempt)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	maxAttempts := uint64(s.cfg.MaxAttempts)
	if maxAttempts > 0 {
		maxAttempts--
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, maxAttempts), ctx))
}

func (s *WebhookService) post(ctx context.Context, rawURL string, body []byte, timestamp, signature string, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignatureTimestamp, timestamp)
	if signature != "" {
		req.Header.Set(headerSignature, signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook delivery attempt failed",
				"url", rawURL,
				"attempt", attempt,
				"error", err,
			)
		}
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	deliveryErr := fmt.Errorf("webhook receiver returned %d", resp.StatusCode)
	if s.logger != nil {
		s.logger.WarnContext(ctx, "webhook delivery attempt rejected",
			"url", rawURL,
			"attempt", attempt,
			"status", resp.StatusCode,
		)
	}
	// Client errors other than throttling will not improve on retry
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(deliveryErr)
	}
	return deliveryErr
}
