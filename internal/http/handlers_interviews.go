package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/interviewlens/lens-api/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// InterviewHandlers serves the read and delete API over stored interviews.
type InterviewHandlers struct {
	Svc      *service.InterviewService
	AudioTTL time.Duration
	Logger   *slog.Logger
}

// List handles GET /v1/interviews.
func (h *InterviewHandlers) List(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	interviews, err := h.Svc.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "list interviews failed", "user_id", user.ID, "error", err)
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"interviews": interviews})
}

// Get handles GET /v1/interviews/{id}.
func (h *InterviewHandlers) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	id, err := pathID(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_id", Err: err})
		return
	}

	interview, err := h.Svc.Get(r.Context(), user.ID, id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, interview)
}

// Audio handles GET /v1/interviews/{id}/audio. It hands back a short-lived
// signed URL instead of proxying the object through the API.
func (h *InterviewHandlers) Audio(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	id, err := pathID(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_id", Err: err})
		return
	}

	ttl := h.AudioTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	url, err := h.Svc.AudioURL(r.Context(), user.ID, id, ttl)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"audio_url":  url,
		"expires_in": int(ttl.Seconds()),
	})
}

// Delete handles DELETE /v1/interviews/{id}.
func (h *InterviewHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	id, err := pathID(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_id", Err: err})
		return
	}

	deleted, err := h.Svc.Delete(r.Context(), user.ID, id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if !deleted {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("interview not found")})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
