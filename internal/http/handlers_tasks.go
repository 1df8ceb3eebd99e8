package httpx

import (
	"log/slog"
	"net/http"

	"github.com/interviewlens/lens-api/internal/domain/model"
	"github.com/interviewlens/lens-api/internal/service"
)

// TaskHandlers is the worker surface the dispatcher delivers claimed jobs to.
type TaskHandlers struct {
	Pipeline *service.PipelineService
	Logger   *slog.Logger
}

// ProcessAudio handles POST /v1/tasks/process-audio. A 200 response completes
// the queue row; any other status lets the queue redeliver the job. The
// success webhook attempt happens inside the pipeline, before this returns.
func (h *TaskHandlers) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	var job model.AnalysisJob
	if !DecodeJSON(w, r, &job) {
		return
	}

	if err := h.Pipeline.Run(r.Context(), &job); err != nil {
		h.Logger.ErrorContext(r.Context(), "pipeline run failed",
			"job_id", job.JobID,
			"user_id", job.UserID,
			"error", err,
		)
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
