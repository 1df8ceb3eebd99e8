package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
	"github.com/interviewlens/lens-api/internal/service"
)

// multipartMemoryLimit is how much of a parsed multipart body may stay in
// memory; the rest spills to disk.
const multipartMemoryLimit = 32 << 20

// AnalyzeHandlers accepts audio uploads and enqueues pipeline runs.
type AnalyzeHandlers struct {
	Store    core.ObjectStore
	Jobs     core.JobRepository
	Credits  *service.CreditService
	Webhooks *service.WebhookService
	Storage  config.StorageConfig
	HTTP     config.HTTPConfig
	Queue    config.DispatcherConfig
	Logger   *slog.Logger
}

type analyzeAccepted struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// AnalyzeAsync handles POST /v1/analyze-async. The debit happens strictly
// before the enqueue; a staging or enqueue failure refunds it immediately.
func (h *AnalyzeHandlers) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.HTTP.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_multipart", Err: err})
		return
	}

	audioFile, audioHeader, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_audio", Err: errors.New("audio file is required")})
		return
	}
	defer audioFile.Close()

	cfg, err := parseAnalysisConfig(r.FormValue("config"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_config", Err: err})
		return
	}

	webhookURL := strings.TrimSpace(r.FormValue("webhook_url"))
	if webhookURL != "" {
		if admitErr := h.Webhooks.AdmitURL(webhookURL); admitErr != nil {
			WriteAppError(w, admitErr)
			return
		}
	}
	webhookSecret := r.FormValue("webhook_secret")
	if webhookSecret == "" && user.WebhookSecret != nil {
		webhookSecret = *user.WebhookSecret
	}

	if err := h.Credits.Debit(r.Context(), user.ID); err != nil {
		WriteAppError(w, err)
		return
	}

	contentType := audioHeader.Header.Get("Content-Type")
	blobRef := service.StagedAudioKey(h.Storage.StagingPrefix, audioHeader.Filename, uuid.NewString())
	if err := h.Store.Put(r.Context(), blobRef, audioFile, contentType); err != nil {
		h.refund(r, user.ID, "staging upload failed")
		h.Logger.ErrorContext(r.Context(), "staging upload failed", "user_id", user.ID, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("could not store audio")})
		return
	}

	payload := model.AnalysisJob{
		UserID:           user.ID,
		BlobRef:          blobRef,
		ContentType:      contentType,
		OriginalFilename: audioHeader.Filename,
		Config:           cfg,
		WebhookURL:       webhookURL,
		WebhookSecret:    webhookSecret,
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		h.refund(r, user.ID, "payload encode failed")
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("could not encode job")})
		return
	}

	job, err := h.Jobs.Create(r.Context(), &model.CreateJobRequest{
		Type:       model.JobTypeAnalysis,
		UserID:     user.ID,
		Payload:    rawPayload,
		MaxRetries: h.Queue.MaxRetries,
	})
	if err != nil {
		h.refund(r, user.ID, "enqueue failed")
		h.Logger.ErrorContext(r.Context(), "enqueue failed", "user_id", user.ID, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("could not enqueue job")})
		return
	}

	h.Logger.InfoContext(r.Context(), "analysis job accepted",
		"job_id", job.ID,
		"user_id", user.ID,
		"blob_ref", blobRef,
		"mode", cfg.AnalysisMode,
	)

	WriteJSON(w, http.StatusAccepted, analyzeAccepted{
		Status:  "processing",
		JobID:   job.ID,
		Message: "Webhook will be notified upon completion",
	})
}

// refund undoes the admission debit after a synchronous failure. The queued
// path never reaches here; its refund belongs to failure compensation.
func (h *AnalyzeHandlers) refund(r *http.Request, userID, cause string) {
	if err := h.Credits.Refund(r.Context(), userID); err != nil {
		h.Logger.ErrorContext(r.Context(), "refund after ingress failure failed",
			"user_id", userID,
			"cause", cause,
			"error", err,
		)
	}
}

func parseAnalysisConfig(raw string) (model.AnalysisConfig, error) {
	var cfg model.AnalysisConfig
	if raw == "" {
		cfg.Normalize()
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return model.AnalysisConfig{}, apperrors.ValidationField("config", "config is not valid JSON")
	}
	if err := cfg.Validate(); err != nil {
		return model.AnalysisConfig{}, apperrors.ValidationField("config", err.Error())
	}
	cfg.Normalize()
	return cfg, nil
}
