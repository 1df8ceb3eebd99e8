package model

import (
	"errors"
	"time"
)

// InterviewStatus represents the terminal state of a pipeline run as
// recorded on the interview aggregate.
type InterviewStatus string

const (
	// InterviewStatusCompleted indicates the full pipeline succeeded.
	InterviewStatusCompleted InterviewStatus = "completed"
	// InterviewStatusFailed indicates the pipeline aborted; Error holds the cause.
	InterviewStatusFailed InterviewStatus = "failed"
)

// Valid returns true if the InterviewStatus is valid.
func (s InterviewStatus) Valid() bool {
	return s == InterviewStatusCompleted || s == InterviewStatusFailed
}

// Interview is the persisted aggregate produced by one pipeline run. It is
// written atomically as a whole after all upstream steps have settled, and
// its identity never changes afterwards.
type Interview struct {
	ID               int64               `json:"id"                          db:"id"`
	UserID           string              `json:"user_id"                     db:"user_id"`
	Title            string              `json:"title"                       db:"title"`
	Status           InterviewStatus     `json:"status"                      db:"status"`
	Transcript       []TranscriptSegment `json:"transcript,omitempty"        db:"transcript"`
	TranscriptText   string              `json:"transcript_text,omitempty"   db:"transcript_text"`
	Analysis         AnalysisResult      `json:"analysis,omitempty"          db:"analysis"`
	AudioRef         *string             `json:"audio_ref,omitempty"         db:"audio_ref"`
	ContentType      string              `json:"content_type,omitempty"      db:"content_type"`
	OriginalFilename string              `json:"original_filename,omitempty" db:"original_filename"`
	AudioDurationS   *float64            `json:"audio_duration_s,omitempty"  db:"audio_duration_s"`
	Waveform         []float64           `json:"waveform,omitempty"          db:"waveform"`
	Error            *string             `json:"error,omitempty"             db:"error"`
	CreatedAt        time.Time           `json:"created_at"                  db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"                  db:"updated_at"`
}

// Validate validates the Interview fields required for persistence.
func (i *Interview) Validate() error {
	if i.ID == 0 {
		return errors.New("interview id is required")
	}
	if i.UserID == "" {
		return errors.New("user id is required")
	}
	if !i.Status.Valid() {
		return errors.New("invalid interview status")
	}
	if i.Status == InterviewStatusFailed && (i.Error == nil || *i.Error == "") {
		return errors.New("failed interview requires an error")
	}
	return nil
}

// InterviewSummary is the list-view projection of an Interview.
type InterviewSummary struct {
	ID             int64           `json:"id"               db:"id"`
	Title          string          `json:"title"            db:"title"`
	Status         InterviewStatus `json:"status"           db:"status"`
	AudioDurationS *float64        `json:"audio_duration_s" db:"audio_duration_s"`
	CreatedAt      time.Time       `json:"created_at"       db:"created_at"`
}

// DeepLinks are the client-facing URLs for one interview's result views.
type DeepLinks struct {
	Transcript string `json:"transcript"`
	Analysis   string `json:"analysis"`
	Report     string `json:"report"`
}
