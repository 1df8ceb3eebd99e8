// Package deepgram is a thin HTTP client for the Deepgram prerecorded
// transcription API. It speaks URL-based requests only; audio bytes never
// pass through this process on the transcription path.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/interviewlens/lens-api/config"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

const maxErrorBodyBytes = 2048

// Client calls the Deepgram listen endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client from the transcription configuration.
func NewClient(cfg config.TranscriptionConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// Word is a single recognized word with its timing and confidence.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    *int    `json:"speaker,omitempty"`
}

// Utterance is one diarized span of speech.
type Utterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript"`
	Words      []Word  `json:"words"`
	Speaker    *int    `json:"speaker,omitempty"`
}

// Result is the subset of the provider response the pipeline consumes.
type Result struct {
	Utterances []Utterance `json:"utterances"`
}

type listenRequest struct {
	URL string `json:"url"`
}

type listenResponse struct {
	Results Result `json:"results"`
}

// TranscribeURL submits audioURL for transcription and returns the diarized
// utterances. Retries transient failures with exponential backoff inside the
// context deadline.
func (c *Client) TranscribeURL(ctx context.Context, audioURL string) (*Result, error) {
	if c.apiKey == "" {
		return nil, apperrors.Provider("transcription api key is not configured")
	}

	endpoint, err := c.listenEndpoint()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(listenRequest{URL: audioURL})
	if err != nil {
		return nil, fmt.Errorf("marshal transcription request: %w", err)
	}

	var result *Result
	operation := func() error {
		res, opErr := c.submit(ctx, endpoint, payload)
		if opErr != nil {
			return opErr
		}
		result = res
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 2 * time.Second
	expBackoff.MaxInterval = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, 3), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) listenEndpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse transcription base url: %w", err)
	}
	u = u.JoinPath("v1", "listen")

	q := u.Query()
	q.Set("model", c.model)
	q.Set("smart_format", "true")
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("paragraphs", "true")
	q.Set("utterances", "true")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) submit(ctx context.Context, endpoint string, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build transcription request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		provErr := apperrors.Providerf("transcription service returned %d: %s", resp.StatusCode, string(body))
		// 4xx responses will not improve on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(provErr)
		}
		if c.logger != nil {
			c.logger.WarnContext(ctx, "transcription request failed, retrying",
				"status", resp.StatusCode,
			)
		}
		return nil, provErr
	}

	var decoded listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(apperrors.Wrap(err, apperrors.ErrCodeProvider, "decode transcription response"))
	}
	return &decoded.Results, nil
}
