package httpx

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds one dependency ping during a health probe.
const healthCheckTimeout = 2 * time.Second

// HealthCheck is a named dependency ping used by the health endpoint.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandlers answers liveness probes, pinging registered dependencies.
type HealthHandlers struct {
	Checks []HealthCheck
}

// Healthz handles GET/HEAD /healthz. Any failing dependency turns the probe
// into a 503 naming the broken check.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"check":  check.Name,
			})
			return
		}
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
