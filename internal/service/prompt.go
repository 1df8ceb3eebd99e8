package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const promptPreamble = `You are a professional Interview Analyst AI. Your task is to analyze the provided interview transcript and produce a comprehensive, structured report in JSON format.

**Primary Goal:** Analyze the conversation to identify the interview environment, technical requirements, key points of emphasis, and all topics discussed.

**CRITICAL: You MUST respond with ONLY valid JSON. No markdown, no code blocks, no explanations - ONLY the raw JSON object.**

**Interview Transcript:**
{transcript}

**REQUIRED JSON OUTPUT STRUCTURE:**

` + "```json" + `
{
`

const promptPostamble = `
}
` + "```" + `

**IMPORTANT NOTES:**
1. Include ALL technologies mentioned or inferred (languages, frameworks, tools, databases, etc.)
2. Add timestamp ranges (MM:SS-MM:SS) for when each technology was discussed
   - Keep ranges realistic: typically 5-15 minutes per technology
   - Use the FIRST major mention of each technology, not the entire interview duration
   - Example: "TypeScript (17:33-25:45)" not "TypeScript (17:33-70:00)"
3. Engagement Score = Engagement x 10 (capped at 100)
4. Extract 3-5 key technical points that the interviewer emphasized
5. Dynamically generate Q&A topic titles based on actual discussion
6. Calculate all time values from the transcript timestamps

7. **CRITICAL: Statistics must be extracted dynamically:**
   - "technicalQuestions": Count the actual number of distinct technical questions asked.
   - "followUpQuestions": Count the actual probing/follow-up questions.
   - "technologiesCount": Count the unique technologies listed in the technologies array.
   - "engagement", "communicationScore", "technicalDepthScore", "engagementScore": Evaluate based on the candidate's actual performance in the transcript (0-100 scale). DO NOT use the example values.

**RESPOND WITH ONLY THE JSON OBJECT - NO OTHER TEXT**`

// PromptBuilder assembles the analysis prompt and its validation schema from
// an ordered set of block ids.
type PromptBuilder struct {
	blocks []PromptBlock
	logger *slog.Logger
}

// NewPromptBuilder resolves block ids against the registry. Unknown ids are
// skipped with a warning so evolving client configs keep working; an empty
// list falls back to the default ordered set.
func NewPromptBuilder(blockIDs []string, logger *slog.Logger) *PromptBuilder {
	if len(blockIDs) == 0 {
		blockIDs = DefaultBlockOrder
	}

	blocks := make([]PromptBlock, 0, len(blockIDs))
	for _, id := range blockIDs {
		block, ok := AvailableBlocks[id]
		if !ok {
			if logger != nil {
				logger.Warn("unknown prompt block id, skipping", "block_id", id)
			}
			continue
		}
		blocks = append(blocks, block)
	}

	return &PromptBuilder{
		blocks: blocks,
		logger: logger,
	}
}

// Blocks returns the resolved blocks in request order.
func (b *PromptBuilder) Blocks() []PromptBlock {
	return b.blocks
}

// RequiredKeys returns the union of result keys the resolved blocks produce,
// in request order.
func (b *PromptBuilder) RequiredKeys() []string {
	var keys []string
	seen := map[string]bool{}
	for _, block := range b.blocks {
		for _, k := range block.RequiredKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Build constructs the full prompt with the transcript substituted in. Block
// instructions are concatenated in request order into the JSON skeleton.
func (b *PromptBuilder) Build(transcriptText string) string {
	instructions := make([]string, 0, len(b.blocks))
	for _, block := range b.blocks {
		instructions = append(instructions, strings.TrimRight(strings.TrimSpace(block.Instruction), ","))
	}

	prompt := promptPreamble + strings.Join(instructions, ",\n") + promptPostamble
	return strings.ReplaceAll(prompt, "{transcript}", transcriptText)
}

// Schema assembles the JSON schema formed by the union of the resolved
// blocks' fragments.
func (b *PromptBuilder) Schema() (json.RawMessage, error) {
	properties := map[string]json.RawMessage{}
	var required []string

	for _, block := range b.blocks {
		var part map[string]json.RawMessage
		if err := json.Unmarshal(block.SchemaPart, &part); err != nil {
			return nil, fmt.Errorf("decode schema fragment for block %s: %w", block.ID, err)
		}
		for k, v := range part {
			properties[k] = v
		}
		required = append(required, block.RequiredKeys...)
	}
	if required == nil {
		required = []string{}
	}

	schema := struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}

	out, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
