package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromptBuilder_ResolvesRequestedBlocks(t *testing.T) {
	b := NewPromptBuilder([]string{"statistics", "general_comments"}, discardLogger())

	blocks := b.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "statistics", blocks[0].ID)
	assert.Equal(t, "general_comments", blocks[1].ID)
	assert.Equal(t, []string{"statistics", "generalComments"}, b.RequiredKeys())
}

func TestNewPromptBuilder_SkipsUnknownBlocks(t *testing.T) {
	b := NewPromptBuilder([]string{"general_comments", "astrology"}, discardLogger())

	require.Len(t, b.Blocks(), 1)
	assert.Equal(t, "general_comments", b.Blocks()[0].ID)
}

func TestNewPromptBuilder_EmptyFallsBackToDefaults(t *testing.T) {
	b := NewPromptBuilder(nil, discardLogger())

	require.Len(t, b.Blocks(), len(DefaultBlockOrder))
	for i, id := range DefaultBlockOrder {
		assert.Equal(t, id, b.Blocks()[i].ID)
	}
}

func TestPromptBuilder_BuildSubstitutesTranscript(t *testing.T) {
	b := NewPromptBuilder([]string{"executive_summary", "key_points"}, discardLogger())

	prompt := b.Build("[0:00] Hello there.")

	assert.Contains(t, prompt, "[0:00] Hello there.")
	assert.NotContains(t, prompt, "{transcript}")
	assert.Contains(t, prompt, `"executiveSummary"`)
	assert.Contains(t, prompt, `"keyPoints"`)
	// Instructions are joined into one JSON skeleton in request order
	assert.Less(t, strings.Index(prompt, `"executiveSummary"`), strings.Index(prompt, `"keyPoints"`))
}

func TestPromptBuilder_Schema(t *testing.T) {
	b := NewPromptBuilder([]string{"executive_summary", "technologies"}, discardLogger())

	raw, err := b.Schema()
	require.NoError(t, err)

	var schema struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "executiveSummary")
	assert.Contains(t, schema.Properties, "technologies")
	assert.Equal(t, []string{"executiveSummary", "technologies"}, schema.Required)
}

func TestAvailableBlocks_CoverDefaultOrder(t *testing.T) {
	for _, id := range DefaultBlockOrder {
		block, ok := AvailableBlocks[id]
		require.True(t, ok, "default block %s is not registered", id)
		assert.NotEmpty(t, block.Instruction)
		assert.NotEmpty(t, block.RequiredKeys)
	}
}
