package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

type pipelineFixture struct {
	svc         *PipelineService
	store       *memStore
	interviews  *memInterviews
	notifier    *recordNotifier
	transcriber *stubTranscriber
	now         time.Time
}

func newPipelineFixture(t *testing.T, transcriber *stubTranscriber, generator *stubGenerator) *pipelineFixture {
	t.Helper()

	store := newMemStore(t.TempDir())
	store.objects["temp_audio/abc.mp3"] = []byte("audio bytes")
	interviews := newMemInterviews()
	notifier := &recordNotifier{}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	svc, err := NewPipelineService(PipelineServiceOptions{
		Store:       store,
		Transcriber: transcriber,
		Analysis:    NewAnalysisService(generator, discardLogger()),
		Interviews:  interviews,
		Notifier:    notifier,
		Storage:     config.StorageConfig{StagingPrefix: "temp_audio", SignedURLTTL: time.Hour},
		Pipeline:    config.PipelineConfig{WaveformSamples: 250},
		FrontendURL: "https://app.example.com/",
		Logger:      discardLogger(),
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)

	return &pipelineFixture{
		svc:         svc,
		store:       store,
		interviews:  interviews,
		notifier:    notifier,
		transcriber: transcriber,
		now:         now,
	}
}

func testAnalysisJob() *model.AnalysisJob {
	return &model.AnalysisJob{
		JobID:            "job-1",
		UserID:           "user-1",
		BlobRef:          "temp_audio/abc.mp3",
		ContentType:      "audio/mpeg",
		OriginalFilename: "session.mp3",
		Config: model.AnalysisConfig{
			PromptBlockIDs: []string{"general_comments"},
			AnalysisMode:   model.AnalysisModeFast,
		},
		WebhookURL:    "https://hooks.example.com/lens",
		WebhookSecret: "topsecret",
	}
}

func TestPipelineRun_Success(t *testing.T) {
	transcriber := &stubTranscriber{segments: []model.TranscriptSegment{
		{ID: 1, Start: 0, Duration: 2.5, Text: "Hello there."},
		{ID: 2, Start: 2.5, Duration: 1.5, Text: "Hi."},
	}}
	fx := newPipelineFixture(t, transcriber, &stubGenerator{response: generalCommentsResponse})

	require.NoError(t, fx.svc.Run(context.Background(), testAnalysisJob()))

	wantID := fx.now.UnixMilli()
	interview, err := fx.interviews.GetByID(context.Background(), "user-1", wantID)
	require.NoError(t, err)
	assert.Equal(t, model.InterviewStatusCompleted, interview.Status)
	assert.Equal(t, fmt.Sprintf("Interview-%d", wantID), interview.Title)
	assert.Len(t, interview.Transcript, 2)
	assert.Equal(t, "Hello there. Hi.", interview.TranscriptText)
	assert.Contains(t, interview.Analysis, "generalComments")

	// Staged blob promoted to the per-user permanent location
	require.NotNil(t, interview.AudioRef)
	assert.Equal(t, "user-1/audio/abc.mp3", *interview.AudioRef)
	assert.Contains(t, fx.store.objects, "user-1/audio/abc.mp3")
	assert.NotContains(t, fx.store.objects, "temp_audio/abc.mp3")

	// Transcription consumed the signed URL, not the raw key
	assert.Equal(t, "https://signed.example.com/temp_audio/abc.mp3", fx.transcriber.audioURL)

	// Success webhook carries analysis and deep links
	require.Len(t, fx.notifier.urls, 1)
	assert.Equal(t, "https://hooks.example.com/lens", fx.notifier.urls[0])
	assert.Equal(t, []string{"topsecret"}, fx.notifier.secrets)
	payload, ok := fx.notifier.payloads[0].(successPayload)
	require.True(t, ok)
	assert.Contains(t, payload.Analysis, "generalComments")
	assert.Contains(t, payload.DeepLinks.Transcript, "https://app.example.com/transcription/")
	assert.Contains(t, payload.DeepLinks.Analysis, "https://app.example.com/analysis/")
	assert.Contains(t, payload.DeepLinks.Report, "https://app.example.com/report/")
}

func TestPipelineRun_DefaultTitle(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})

	require.NoError(t, fx.svc.Run(context.Background(), testAnalysisJob()))

	interview, err := fx.interviews.GetByID(context.Background(), "user-1", fx.now.UnixMilli())
	require.NoError(t, err)
	assert.Contains(t, interview.Title, "Interview-")
}

func TestPipelineRun_ConfiguredTitle(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})

	job := testAnalysisJob()
	job.Config.Title = "Backend Round 2"
	require.NoError(t, fx.svc.Run(context.Background(), job))

	interview, err := fx.interviews.GetByID(context.Background(), "user-1", fx.now.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, "Backend Round 2", interview.Title)
}

func TestPipelineRun_SameMillisecondRunsGetDistinctIDs(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})
	fx.store.objects["temp_audio/def.mp3"] = []byte("more audio bytes")

	first := testAnalysisJob()
	second := testAnalysisJob()
	second.JobID = "job-2"
	second.BlobRef = "temp_audio/def.mp3"

	// The clock is frozen, so both runs see the same millisecond
	require.NoError(t, fx.svc.Run(context.Background(), first))
	require.NoError(t, fx.svc.Run(context.Background(), second))

	require.Len(t, fx.interviews.interviews, 2)
	base := fx.now.UnixMilli()
	_, err := fx.interviews.GetByID(context.Background(), "user-1", base)
	require.NoError(t, err)
	_, err = fx.interviews.GetByID(context.Background(), "user-1", base+1)
	require.NoError(t, err)
}

func TestPipelineRun_TranscriptionFailureAborts(t *testing.T) {
	transcriber := &stubTranscriber{err: apperrors.Provider("transcription service returned 500")}
	fx := newPipelineFixture(t, transcriber, &stubGenerator{response: generalCommentsResponse})

	err := fx.svc.Run(context.Background(), testAnalysisJob())
	require.Error(t, err)

	assert.Empty(t, fx.interviews.interviews)
	assert.Empty(t, fx.notifier.urls)
	// Staged blob stays for the compensation path to release
	assert.Contains(t, fx.store.objects, "temp_audio/abc.mp3")
}

func TestPipelineRun_PromotionFailureKeepsStagedRef(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})
	fx.store.moveErr = apperrors.Provider("storage unavailable")

	require.NoError(t, fx.svc.Run(context.Background(), testAnalysisJob()))

	interview, err := fx.interviews.GetByID(context.Background(), "user-1", fx.now.UnixMilli())
	require.NoError(t, err)
	require.NotNil(t, interview.AudioRef)
	assert.Equal(t, "temp_audio/abc.mp3", *interview.AudioRef)
}

func TestPipelineRun_NoWebhookURL(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})

	job := testAnalysisJob()
	job.WebhookURL = ""
	require.NoError(t, fx.svc.Run(context.Background(), job))

	assert.Empty(t, fx.notifier.urls)
	assert.Len(t, fx.interviews.interviews, 1)
}

func TestPipelineRun_InvalidJob(t *testing.T) {
	fx := newPipelineFixture(t, &stubTranscriber{}, &stubGenerator{response: generalCommentsResponse})

	err := fx.svc.Run(context.Background(), &model.AnalysisJob{JobID: "job-1"})
	assert.Error(t, err)
}

func TestStagedAudioKey(t *testing.T) {
	assert.Equal(t, "temp_audio/uid.wav", StagedAudioKey("temp_audio", "take1.wav", "uid"))
	// Extensionless uploads default to mp3
	assert.Equal(t, "temp_audio/uid.mp3", StagedAudioKey("temp_audio", "take1", "uid"))
}

func TestPermanentAudioKey(t *testing.T) {
	assert.Equal(t, "user-1/audio/abc.mp3", PermanentAudioKey("user-1", "temp_audio", "temp_audio/abc.mp3"))
	// Keys outside the staging area pass through unchanged
	assert.Equal(t, "user-1/audio/abc.mp3", PermanentAudioKey("user-1", "temp_audio", "user-1/audio/abc.mp3"))
}
