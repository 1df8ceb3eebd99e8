package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/adapters/deepgram"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

func intPtr(i int) *int { return &i }

func TestNormalizeUtterances(t *testing.T) {
	utterances := []deepgram.Utterance{
		{
			Start:      10.5,
			End:        14.0,
			Transcript: "thanks for joining today.",
			Speaker:    intPtr(0),
			Words: []deepgram.Word{
				{Word: "thanks", Confidence: 0.98},
				{Word: "for", Confidence: 0.99},
				{Word: "joining", Confidence: 0.91},
				{Word: "today", Confidence: 0.95},
			},
		},
		{
			Start:      2.0,
			End:        4.5,
			Transcript: "hello, can you hear me?",
			Speaker:    intPtr(1),
		},
	}

	segments := NormalizeUtterances(utterances)
	require.Len(t, segments, 2)

	// Sorted by start offset with sequential ids
	assert.Equal(t, 1, segments[0].ID)
	assert.Equal(t, 2.0, segments[0].Start)
	assert.Equal(t, 2, segments[1].ID)
	assert.Equal(t, 10.5, segments[1].Start)
	assert.InDelta(t, 3.5, segments[1].Duration, 1e-9)

	// First letter capitalized, speaker index mapped to a 1-based label
	assert.Equal(t, "Hello, can you hear me?", segments[0].Text)
	require.NotNil(t, segments[0].Speaker)
	assert.Equal(t, "Speaker 2", *segments[0].Speaker)
	require.NotNil(t, segments[1].Speaker)
	assert.Equal(t, "Speaker 1", *segments[1].Speaker)
}

func TestNormalizeUtterances_WordConfidences(t *testing.T) {
	utterances := []deepgram.Utterance{
		{
			Start:      0,
			End:        2,
			Transcript: "Hello, World!",
			Words: []deepgram.Word{
				{Word: "hello", Confidence: 0.8},
				{Word: "world", Confidence: 0.6},
			},
		},
	}

	segments := NormalizeUtterances(utterances)
	require.Len(t, segments, 1)
	words := segments[0].Words
	require.Len(t, words, 2)

	// Tokens keep their punctuation; confidences are matched on cleaned forms
	assert.Equal(t, "Hello,", words[0].Text)
	assert.Equal(t, 0.8, words[0].Confidence)
	assert.Equal(t, "World!", words[1].Text)
	assert.Equal(t, 0.6, words[1].Confidence)
}

func TestNormalizeUtterances_UnscoredTokensDefaultToFullConfidence(t *testing.T) {
	utterances := []deepgram.Utterance{
		{Start: 0, End: 1, Transcript: "okay then"},
	}

	segments := NormalizeUtterances(utterances)
	require.Len(t, segments, 1)
	for _, w := range segments[0].Words {
		assert.Equal(t, 1.0, w.Confidence)
	}
}

func TestNormalizeUtterances_NoSpeaker(t *testing.T) {
	segments := NormalizeUtterances([]deepgram.Utterance{
		{Start: 0, End: 1, Transcript: "mono channel"},
	})
	require.Len(t, segments, 1)
	assert.Nil(t, segments[0].Speaker)
}

func TestNormalizeUtterances_Empty(t *testing.T) {
	assert.Empty(t, NormalizeUtterances(nil))
}

func TestRenderTimestamped(t *testing.T) {
	segments := []model.TranscriptSegment{
		{Start: 0, Text: "Hello."},
		{Start: 65.7, Text: "Let's begin."},
		{Start: 601, Text: "Last question."},
	}

	out := RenderTimestamped(segments)
	assert.Equal(t, "[0:00] Hello.\n[1:05] Let's begin.\n[10:01] Last question.", out)
}

func TestRenderText(t *testing.T) {
	segments := []model.TranscriptSegment{
		{Text: "Hello."},
		{Text: "Let's begin."},
	}
	assert.Equal(t, "Hello. Let's begin.", RenderText(segments))
}
