package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// AnalysisService drives the generative model over a rendered transcript and
// validates the resulting report against the requested block set.
type AnalysisService struct {
	generator core.Generator
	logger    *slog.Logger
}

// NewAnalysisService creates an AnalysisService around the model client.
func NewAnalysisService(generator core.Generator, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		generator: generator,
		logger:    logger,
	}
}

// Analyze builds the prompt for the requested blocks, invokes the model, and
// returns the validated result. The three fatal outcomes are a transport
// failure, an empty response, and a response that is not the requested JSON
// document.
func (s *AnalysisService) Analyze(
	ctx context.Context,
	transcriptText string,
	blockIDs []string,
	mode model.AnalysisMode,
) (model.AnalysisResult, error) {
	builder := NewPromptBuilder(blockIDs, s.logger)
	prompt := builder.Build(transcriptText)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "running analysis",
			"mode", mode,
			"blocks", len(builder.Blocks()),
		)
	}

	raw, err := s.generator.Generate(ctx, prompt, mode)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.Provider("analysis model returned an empty response")
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &result); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "analysis model returned malformed JSON")
	}

	if err := ValidateAnalysisResult(result, builder.RequiredKeys()); err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateAnalysisResult checks that the result's top-level keys are exactly
// the keys the requested blocks produce. Required keys are probed with
// jmespath expressions so nested shape checks can extend the same mechanism.
func ValidateAnalysisResult(result model.AnalysisResult, requiredKeys []string) error {
	decoded := make(map[string]any, len(result))
	for k, v := range result {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return apperrors.Providerf("analysis key %q holds invalid JSON", k)
		}
		decoded[k] = val
	}

	allowed := make(map[string]bool, len(requiredKeys))
	for _, key := range requiredKeys {
		allowed[key] = true
		value, err := jmespath.Search(key, decoded)
		if err != nil {
			return fmt.Errorf("probe analysis key %q: %w", key, err)
		}
		if value == nil {
			return apperrors.Providerf("analysis result is missing required key %q", key)
		}
	}

	for key := range result {
		if !allowed[key] {
			return apperrors.Providerf("analysis result contains unexpected key %q", key)
		}
	}
	return nil
}

// stripCodeFences unwraps a fenced code block if the model ignored the
// raw-JSON instruction.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
