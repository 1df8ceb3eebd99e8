// Package media extracts playback metadata from audio files using the
// ffmpeg/ffprobe binaries on the host.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/interviewlens/lens-api/config"
)

// Extractor shells out to ffprobe for duration and to ffmpeg for decoding
// audio into PCM before envelope computation.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	logger      *slog.Logger
}

// NewExtractor builds an Extractor from the pipeline configuration.
func NewExtractor(cfg config.PipelineConfig, logger *slog.Logger) *Extractor {
	return &Extractor{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		tempDir:     cfg.TempDir,
		logger:      logger,
	}
}

// Duration returns the audio duration in seconds.
func (e *Extractor) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// Envelope computes an amplitude envelope of the given sample count,
// normalized so the loudest bucket is 1.0. Non-WAV inputs are decoded to
// mono 22050 Hz WAV first.
func (e *Extractor) Envelope(ctx context.Context, path string, samples int) ([]float64, error) {
	wavPath := path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		converted, err := e.convertToWAV(ctx, path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(converted)
		wavPath = converted
	}

	envelope, err := wavEnvelope(wavPath, samples)
	if err == nil {
		return envelope, nil
	}

	// Some containers carry a .wav suffix over non-PCM content. Decode
	// through ffmpeg once before giving up.
	if wavPath == path {
		converted, convErr := e.convertToWAV(ctx, path)
		if convErr != nil {
			return nil, fmt.Errorf("%w (after %v)", convErr, err)
		}
		defer os.Remove(converted)
		return wavEnvelope(converted, samples)
	}
	return nil, err
}

func (e *Extractor) convertToWAV(ctx context.Context, path string) (string, error) {
	out, err := os.CreateTemp(e.tempDir, "*-decoded.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-y",
		"-i", path,
		"-ac", "1",
		"-ar", "22050",
		"-f", "wav",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(outPath)
		if e.logger != nil {
			e.logger.WarnContext(ctx, "ffmpeg decode failed",
				"file", filepath.Base(path),
				"output", truncate(string(output), 512),
			)
		}
		return "", fmt.Errorf("ffmpeg decode %s: %w", filepath.Base(path), err)
	}
	return outPath, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
