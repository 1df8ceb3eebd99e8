// Package devseed populates a development database with a usable account and
// a finished interview so the API has data to serve on first boot.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/data"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

const seedCredits = 10

// Run seeds the dev identity and a sample interview. It is idempotent: the
// user upsert keeps an existing balance and the interview upserts on its fixed
// ID, so repeated boots do not multiply rows.
func Run(ctx context.Context, db *sql.DB, auth config.AuthConfig, logger *slog.Logger) error {
	users := data.NewUserRepo(db, logger)
	interviews := data.NewInterviewRepo(db, logger)

	user, err := users.EnsureUser(ctx, auth.DevAuth.UserID, auth.DevAuth.Email, seedCredits)
	if err != nil {
		return fmt.Errorf("seed dev user: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "dev user ready",
			"user_id", user.ID,
			"credits", user.Credits,
		)
	}

	if err := seedSampleInterview(ctx, interviews, user.ID); err != nil {
		return fmt.Errorf("seed sample interview: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "sample interview ready", "user_id", user.ID)
	}
	return nil
}

// seedSampleInterview writes one completed interview under a fixed ID so the
// list and detail endpoints return something before the first real upload.
func seedSampleInterview(ctx context.Context, interviews *data.InterviewRepo, userID string) error {
	duration := 12.5
	return interviews.Put(ctx, &model.Interview{
		ID:             1,
		UserID:         userID,
		Title:          "Sample Interview",
		Status:         model.InterviewStatusCompleted,
		Transcript:     sampleTranscript(),
		TranscriptText: "Hello, can you hear me? Yes, loud and clear. Great, let's get started.",
		Analysis:       sampleAnalysis(),
		AudioDurationS: &duration,
		Waveform:       []float64{0.1, 0.4, 0.9, 0.7, 0.3, 0.5, 0.8, 0.2},
	})
}

func sampleTranscript() []model.TranscriptSegment {
	interviewer := "Speaker 1"
	candidate := "Speaker 2"
	return []model.TranscriptSegment{
		{ID: 1, Start: 0, Duration: 2.5, Text: "Hello, can you hear me?", Speaker: &interviewer},
		{ID: 2, Start: 2.5, Duration: 2.0, Text: "Yes, loud and clear.", Speaker: &candidate},
		{ID: 3, Start: 4.5, Duration: 3.0, Text: "Great, let's get started.", Speaker: &interviewer},
	}
}

func sampleAnalysis() model.AnalysisResult {
	return model.AnalysisResult{
		"generalComments": []byte(`{
			"howInterview": "Short connectivity check followed by introductions.",
			"attitude": "Friendly and relaxed.",
			"structure": "Greeting, audio check, kickoff.",
			"platform": "Remote video call."
		}`),
	}
}
