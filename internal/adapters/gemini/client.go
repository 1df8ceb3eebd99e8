// Package gemini is an HTTP client for the Gemini generateContent API.
package gemini

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
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

const maxErrorBodyBytes = 2048

// Client calls the generateContent endpoint. The model is selected per call
// from the requested analysis mode.
type Client struct {
	baseURL    string
	apiKey     string
	fastModel  string
	deepModel  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client from the analysis configuration.
func NewClient(cfg config.AnalysisConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		fastModel: cfg.FastModel,
		deepModel: cfg.DeepModel,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ModelFor maps an analysis mode to the configured model name.
func (c *Client) ModelFor(mode model.AnalysisMode) string {
	if mode == model.AnalysisModeDeep {
		return c.deepModel
	}
	return c.fastModel
}

// Generate submits prompt to the model selected by mode and returns the raw
// text of the first candidate. The request pins a JSON response MIME type so
// the model emits a machine-readable document.
func (c *Client) Generate(ctx context.Context, prompt string, mode model.AnalysisMode) (string, error) {
	if c.apiKey == "" {
		return "", apperrors.Provider("analysis api key is not configured")
	}

	endpoint, err := c.generateEndpoint(c.ModelFor(mode))
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []generateContent{
			{Parts: []generatePart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:      0.3,
			TopP:             0.95,
			TopK:             40,
			MaxOutputTokens:  8192,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	var text string
	operation := func() error {
		out, opErr := c.submit(ctx, endpoint, payload)
		if opErr != nil {
			return opErr
		}
		text = out
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 2 * time.Second
	expBackoff.MaxInterval = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, 3), ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) generateEndpoint(modelName string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse analysis base url: %w", err)
	}
	u = u.JoinPath("v1beta", "models", modelName+":generateContent")

	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) submit(ctx context.Context, endpoint string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build generation request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		provErr := apperrors.Providerf("analysis service returned %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(provErr)
		}
		if c.logger != nil {
			c.logger.WarnContext(ctx, "generation request failed, retrying",
				"status", resp.StatusCode,
			)
		}
		return "", provErr
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", backoff.Permanent(apperrors.Wrap(err, apperrors.ErrCodeProvider, "decode generation response"))
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", backoff.Permanent(apperrors.Provider("analysis service returned no candidates"))
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
