package config

import "time"

// StorageConfig contains object storage configuration (S3-compatible).
type StorageConfig struct {
	// Region is the storage region.
	Region string `env:"REGION" envDefault:"us-east-1"`

	// Bucket holds both staged and permanent audio objects.
	Bucket string `env:"BUCKET" envDefault:"lens-audio"`

	// Endpoint overrides the provider endpoint (MinIO or another
	// S3-compatible store). Leave empty for AWS.
	Endpoint string `env:"ENDPOINT" envDefault:""`

	// AccessKeyID and SecretAccessKey are static credentials. When both are
	// empty the default credential chain is used.
	AccessKeyID     string `env:"ACCESS_KEY_ID"     envDefault:""`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" envDefault:""`

	// UsePathStyle forces path-style addressing (required by MinIO).
	UsePathStyle bool `env:"USE_PATH_STYLE" envDefault:"false"`

	// StagingPrefix is the temporary namespace for uploads pending a
	// successful pipeline run.
	StagingPrefix string `env:"STAGING_PREFIX" envDefault:"temp_audio"`

	// SignedURLTTL is the lifetime of presigned read URLs handed to the
	// transcription provider.
	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	if s.StagingPrefix == "" {
		s.StagingPrefix = "temp_audio"
	}
	if s.SignedURLTTL < time.Minute {
		s.SignedURLTTL = time.Minute
	}
}

// TranscriptionConfig contains speech-to-text provider configuration.
type TranscriptionConfig struct {
	// BaseURL is the provider API base URL.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.deepgram.com"`

	// APIKey authenticates requests to the provider.
	APIKey string `env:"API_KEY" envDefault:""`

	// Model is the speech-to-text model identifier.
	Model string `env:"MODEL" envDefault:"nova-3-general"`

	// RequestTimeout bounds one transcription call end to end.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
}

// Sanitize applies guardrails to transcription configuration values.
func (t *TranscriptionConfig) Sanitize() {
	if t.RequestTimeout < 30*time.Second {
		t.RequestTimeout = 30 * time.Second
	}
}

// AnalysisConfig contains generative model provider configuration.
type AnalysisConfig struct {
	// BaseURL is the provider API base URL.
	BaseURL string `env:"BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`

	// APIKey authenticates requests to the provider.
	APIKey string `env:"API_KEY" envDefault:""`

	// FastModel serves analysis_mode=fast runs.
	FastModel string `env:"FAST_MODEL" envDefault:"gemini-2.5-flash-lite"`

	// DeepModel serves analysis_mode=deep runs.
	DeepModel string `env:"DEEP_MODEL" envDefault:"gemini-2.5-flash"`

	// RequestTimeout bounds one generation call end to end.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3m"`
}

// Sanitize applies guardrails to analysis configuration values.
func (a *AnalysisConfig) Sanitize() {
	if a.RequestTimeout < 30*time.Second {
		a.RequestTimeout = 30 * time.Second
	}
}

// WebhookConfig contains webhook delivery configuration.
type WebhookConfig struct {
	// SuccessTimeout bounds a success notification POST.
	SuccessTimeout time.Duration `env:"SUCCESS_TIMEOUT" envDefault:"30s"`

	// FailureTimeout bounds a failure notification POST.
	FailureTimeout time.Duration `env:"FAILURE_TIMEOUT" envDefault:"10s"`

	// MaxAttempts is the bounded retry budget for one delivery.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// AllowPrivateHosts disables the registrable-domain admission check on
	// webhook URLs. Intended for local development only.
	AllowPrivateHosts bool `env:"ALLOW_PRIVATE_HOSTS" envDefault:"false"`
}

// Sanitize applies guardrails to webhook configuration values.
func (w *WebhookConfig) Sanitize() {
	if w.SuccessTimeout < time.Second {
		w.SuccessTimeout = time.Second
	}
	if w.FailureTimeout < time.Second {
		w.FailureTimeout = time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
}

// PipelineConfig contains pipeline execution configuration.
type PipelineConfig struct {
	// JobCost is the number of credits debited per pipeline run.
	JobCost float64 `env:"JOB_COST" envDefault:"1"`

	// WaveformSamples is the length of the amplitude envelope.
	WaveformSamples int `env:"WAVEFORM_SAMPLES" envDefault:"250"`

	// FFmpegPath and FFprobePath locate the conversion tools used for
	// non-WAV containers and duration probing.
	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	// TempDir is where staged blobs are downloaded for local processing.
	// Empty means the OS default.
	TempDir string `env:"TEMP_DIR" envDefault:""`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.JobCost <= 0 {
		p.JobCost = 1
	}
	if p.WaveformSamples < 10 {
		p.WaveformSamples = 10
	}
	if p.WaveformSamples > 4000 {
		p.WaveformSamples = 4000
	}
}
