package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of this service (e.g., "https://api.example.com").
	// Used for generating absolute URLs in external contexts.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// FrontendURL is the base URL of the client application. Deep links in
	// webhook payloads are built from it.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// MaxUploadBytes caps the size of an uploaded audio file.
	MaxUploadBytes int64 `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"209715200"` // 200 MiB
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	// 1 MiB floor keeps the multipart reader usable for any real recording
	if h.MaxUploadBytes < 1<<20 {
		h.MaxUploadBytes = 1 << 20
	}
}
