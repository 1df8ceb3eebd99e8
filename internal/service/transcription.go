package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/interviewlens/lens-api/internal/adapters/deepgram"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// TranscriptionService converts provider utterances into normalized
// transcript segments.
type TranscriptionService struct {
	client *deepgram.Client
	logger *slog.Logger
}

// NewTranscriptionService creates a TranscriptionService around the provider client.
func NewTranscriptionService(client *deepgram.Client, logger *slog.Logger) *TranscriptionService {
	return &TranscriptionService{
		client: client,
		logger: logger,
	}
}

// Transcribe submits the audio URL for transcription and normalizes the
// result. A provider response with zero utterances yields an empty list.
func (s *TranscriptionService) Transcribe(ctx context.Context, audioURL string) ([]model.TranscriptSegment, error) {
	result, err := s.client.TranscribeURL(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	segments := NormalizeUtterances(result.Utterances)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "transcription normalized", "segments", len(segments))
	}
	return segments, nil
}

// NormalizeUtterances maps diarized utterances to transcript segments:
// segments sorted by start offset with sequential ids, first letter
// capitalized, numeric speaker indexes mapped to 1-based "Speaker N" labels,
// and per-word confidences rejoined onto the formatted transcript words.
func NormalizeUtterances(utterances []deepgram.Utterance) []model.TranscriptSegment {
	segments := make([]model.TranscriptSegment, 0, len(utterances))

	for _, u := range utterances {
		text := capitalizeFirst(u.Transcript)

		var speaker *string
		if u.Speaker != nil {
			label := fmt.Sprintf("Speaker %d", *u.Speaker+1)
			speaker = &label
		}

		segments = append(segments, model.TranscriptSegment{
			Start:    u.Start,
			Duration: u.End - u.Start,
			Text:     text,
			Words:    matchWordConfidences(text, u.Words),
			Speaker:  speaker,
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	for i := range segments {
		segments[i].ID = i + 1
	}
	return segments
}

// matchWordConfidences splits the formatted transcript on whitespace and
// looks up each token's confidence by its cleaned lowercase form. Tokens the
// provider did not score default to 1.0.
func matchWordConfidences(text string, words []deepgram.Word) []model.Word {
	confidences := make(map[string]float64, len(words))
	for _, w := range words {
		if clean := cleanWord(w.Word); clean != "" {
			confidences[clean] = w.Confidence
		}
	}

	tokens := strings.Fields(text)
	out := make([]model.Word, 0, len(tokens))
	for _, token := range tokens {
		confidence := 1.0
		if c, ok := confidences[cleanWord(token)]; ok {
			confidence = c
		}
		out = append(out, model.Word{
			Text:       token,
			Confidence: confidence,
		})
	}
	return out
}

// cleanWord strips everything but letters, digits, and apostrophes, and
// lowercases the rest.
func cleanWord(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func capitalizeFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// RenderTimestamped renders segments as "[m:ss] text" lines, newline-joined.
// This is the rendering the analysis prompt consumes.
func RenderTimestamped(segments []model.TranscriptSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		total := int(seg.Start)
		lines = append(lines, fmt.Sprintf("[%d:%02d] %s", total/60, total%60, seg.Text))
	}
	return strings.Join(lines, "\n")
}

// RenderText renders segments as plain concatenated text.
func RenderText(segments []model.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
