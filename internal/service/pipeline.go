package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// PipelineServiceOptions groups dependencies for PipelineService.
type PipelineServiceOptions struct {
	Store       core.ObjectStore
	Transcriber core.Transcriber
	Analysis    *AnalysisService
	Waveform    core.WaveformExtractor
	Interviews  core.InterviewRepository
	Notifier    core.Notifier
	Storage     config.StorageConfig
	Pipeline    config.PipelineConfig
	FrontendURL string
	Logger      *slog.Logger
	Now         func() time.Time
}

// PipelineService runs the full analysis pipeline for one claimed job:
// download, duration and waveform, transcription, analysis, blob promotion,
// persistence, and the success webhook.
type PipelineService struct {
	store       core.ObjectStore
	transcriber core.Transcriber
	analysis    *AnalysisService
	waveform    core.WaveformExtractor
	interviews  core.InterviewRepository
	notifier    core.Notifier
	storage     config.StorageConfig
	pipeline    config.PipelineConfig
	frontendURL string
	logger      *slog.Logger
	now         func() time.Time

	idMu   sync.Mutex
	lastID int64
}

// NewPipelineService validates the options and constructs a PipelineService.
func NewPipelineService(opts PipelineServiceOptions) (*PipelineService, error) {
	if opts.Store == nil || opts.Transcriber == nil || opts.Analysis == nil ||
		opts.Interviews == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("store, transcriber, analysis, interviews, and notifier are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PipelineService{
		store:       opts.Store,
		transcriber: opts.Transcriber,
		analysis:    opts.Analysis,
		waveform:    opts.Waveform,
		interviews:  opts.Interviews,
		notifier:    opts.Notifier,
		storage:     opts.Storage,
		pipeline:    opts.Pipeline,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		logger:      logger,
		now:         now,
	}, nil
}

// successPayload is the webhook body for a completed run.
type successPayload struct {
	Analysis  model.AnalysisResult `json:"analysis"`
	DeepLinks model.DeepLinks      `json:"deep_links"`
}

// Run executes the pipeline for one job. The returned error aborts the run;
// credit refund and failure notification belong to the compensation path that
// fires when the job permanently fails, not to this method.
func (s *PipelineService) Run(ctx context.Context, job *model.AnalysisJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	localPath, err := s.store.Download(ctx, job.BlobRef, s.pipeline.TempDir)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer os.Remove(localPath)

	duration, waveform := s.extractPlaybackData(ctx, localPath)

	signedURL, err := s.store.SignedReadURL(ctx, job.BlobRef, s.storage.SignedURLTTL)
	if err != nil {
		return fmt.Errorf("sign audio url: %w", err)
	}

	segments, err := s.transcriber.Transcribe(ctx, signedURL)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	timestamped := RenderTimestamped(segments)
	plainText := RenderText(segments)

	analysis, err := s.analysis.Analyze(ctx, timestamped, job.Config.PromptBlockIDs, job.Config.AnalysisMode)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	// Promotion failure is tolerable once the analysis exists; the staged
	// object keeps serving until cleanup catches up.
	audioRef := s.promoteBlob(ctx, job)

	interviewID := s.nextInterviewID()
	title := job.Config.Title
	if title == "" {
		title = fmt.Sprintf("Interview-%d", interviewID)
	}

	interview := &model.Interview{
		ID:               interviewID,
		UserID:           job.UserID,
		Title:            title,
		Status:           model.InterviewStatusCompleted,
		Transcript:       segments,
		TranscriptText:   plainText,
		Analysis:         analysis,
		AudioRef:         &audioRef,
		ContentType:      job.ContentType,
		OriginalFilename: job.OriginalFilename,
		Waveform:         waveform,
	}
	if duration > 0 {
		interview.AudioDurationS = &duration
	}

	if err := s.interviews.Put(ctx, interview); err != nil {
		return fmt.Errorf("persist interview: %w", err)
	}

	s.logger.InfoContext(ctx, "pipeline completed",
		"job_id", job.JobID,
		"user_id", job.UserID,
		"interview_id", interviewID,
		"segments", len(segments),
	)

	s.notifySuccess(ctx, job, analysis, interviewID)
	return nil
}

// nextInterviewID mints an interview id from epoch milliseconds, kept
// strictly increasing within this process so runs finishing in the same
// millisecond cannot collide on the (user_id, id) upsert.
func (s *PipelineService) nextInterviewID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// extractPlaybackData derives duration and waveform concurrently. Both are
// presentation data; failures degrade the record instead of aborting the run.
func (s *PipelineService) extractPlaybackData(ctx context.Context, localPath string) (float64, []float64) {
	if s.waveform == nil {
		return 0, nil
	}

	var (
		duration float64
		envelope []float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.waveform.Duration(gctx, localPath)
		if err != nil {
			s.logger.WarnContext(gctx, "duration extraction failed", "error", err)
			return nil
		}
		duration = d
		return nil
	})
	g.Go(func() error {
		env, err := s.waveform.Envelope(gctx, localPath, s.pipeline.WaveformSamples)
		if err != nil {
			s.logger.WarnContext(gctx, "waveform extraction failed", "error", err)
			return nil
		}
		envelope = env
		return nil
	})
	_ = g.Wait()

	return duration, envelope
}

// promoteBlob moves the staged upload to its permanent per-user location and
// returns the reference to persist. On failure the staged key is kept.
func (s *PipelineService) promoteBlob(ctx context.Context, job *model.AnalysisJob) string {
	permanentKey := PermanentAudioKey(job.UserID, s.storage.StagingPrefix, job.BlobRef)
	if permanentKey == job.BlobRef {
		return job.BlobRef
	}
	if err := s.store.Move(ctx, job.BlobRef, permanentKey); err != nil {
		s.logger.WarnContext(ctx, "audio promotion failed, keeping staged object",
			"job_id", job.JobID,
			"blob_ref", job.BlobRef,
			"error", err,
		)
		return job.BlobRef
	}
	return permanentKey
}

func (s *PipelineService) notifySuccess(ctx context.Context, job *model.AnalysisJob, analysis model.AnalysisResult, interviewID int64) {
	if job.WebhookURL == "" {
		return
	}

	payload := successPayload{
		Analysis: analysis,
		DeepLinks: model.DeepLinks{
			Transcript: fmt.Sprintf("%s/transcription/%d", s.frontendURL, interviewID),
			Analysis:   fmt.Sprintf("%s/analysis/%d", s.frontendURL, interviewID),
			Report:     fmt.Sprintf("%s/report/%d", s.frontendURL, interviewID),
		},
	}

	if err := s.notifier.Deliver(ctx, job.WebhookURL, payload, job.WebhookSecret); err != nil {
		// Notification failures never undo completed analysis work
		s.logger.ErrorContext(ctx, "success webhook delivery failed",
			"job_id", job.JobID,
			"url", job.WebhookURL,
			"error", err,
		)
	}
}

// StagedAudioKey builds the temporary object key for a fresh upload.
func StagedAudioKey(stagingPrefix, originalFilename, uniqueID string) string {
	ext := path.Ext(originalFilename)
	if ext == "" {
		ext = ".mp3"
	}
	return path.Join(stagingPrefix, uniqueID+ext)
}

// PermanentAudioKey maps a staged key to its per-user permanent location.
// Keys outside the staging area are returned unchanged.
func PermanentAudioKey(userID, stagingPrefix, stagedKey string) string {
	if !strings.HasPrefix(stagedKey, stagingPrefix+"/") {
		return stagedKey
	}
	return path.Join(userID, "audio", path.Base(stagedKey))
}
