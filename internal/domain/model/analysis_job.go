package model

import (
	"errors"
	"fmt"
	"strings"
)

// AnalysisMode selects the generative model tier used for a pipeline run.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type AnalysisMode string

const (
	// AnalysisModeFast selects the low-latency model tier.
	AnalysisModeFast AnalysisMode = "fast"
	// AnalysisModeDeep selects the higher-quality model tier.
	AnalysisModeDeep AnalysisMode = "deep"
)

// Valid returns true if the AnalysisMode is valid.
func (m AnalysisMode) Valid() bool {
	return m == AnalysisModeFast || m == AnalysisModeDeep
}

// UnmarshalText implements encoding.TextUnmarshaler for AnalysisMode.
func (m *AnalysisMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	am := AnalysisMode(v)
	if am.Valid() {
		*m = am
		return nil
	}
	return fmt.Errorf("invalid AnalysisMode: %q (valid options: fast, deep)", v)
}

// AnalysisConfig is the caller-supplied configuration for one pipeline run.
type AnalysisConfig struct {
	Title          string       `json:"title,omitempty"`
	PromptBlockIDs []string     `json:"prompt_block_ids,omitempty"`
	AnalysisMode   AnalysisMode `json:"analysis_mode,omitempty"`
}

// Normalize fills defaults for unset fields.
func (c *AnalysisConfig) Normalize() {
	if c.AnalysisMode == "" {
		c.AnalysisMode = AnalysisModeFast
	}
}

// Validate validates the AnalysisConfig fields.
func (c *AnalysisConfig) Validate() error {
	if c.AnalysisMode != "" && !c.AnalysisMode.Valid() {
		return fmt.Errorf("invalid analysis_mode: %q", c.AnalysisMode)
	}
	return nil
}

// AnalysisJob is the immutable payload of one queued pipeline run. It is
// created by the ingress handler, carried through the queue as JSON, and
// consumed exactly once by a worker.
type AnalysisJob struct {
	JobID            string         `json:"job_id"`
	UserID           string         `json:"user_id"`
	BlobRef          string         `json:"blob_ref"`
	ContentType      string         `json:"content_type"`
	OriginalFilename string         `json:"original_filename"`
	Config           AnalysisConfig `json:"config"`
	WebhookURL       string         `json:"webhook_url,omitempty"`
	WebhookSecret    string         `json:"webhook_secret,omitempty"`
}

// Validate validates the AnalysisJob fields.
func (j *AnalysisJob) Validate() error {
	if j.JobID == "" {
		return errors.New("job id is required")
	}
	if j.UserID == "" {
		return errors.New("user id is required")
	}
	if j.BlobRef == "" {
		return errors.New("blob ref is required")
	}
	if err := j.Config.Validate(); err != nil {
		return err
	}
	return nil
}
