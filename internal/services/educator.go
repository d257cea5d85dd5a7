package services

import (
	"context"
	"strings"

	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
)

// EducationalNoteGenerator writes a personalized note about a condition
type EducationalNoteGenerator struct {
	completer Completer
	model     string
	language  string
	logger    *zap.SugaredLogger
}

// NewEducationalNoteGenerator creates a generator; a nil completer is always unavailable
func NewEducationalNoteGenerator(completer Completer, model, language string, logger *zap.SugaredLogger) *EducationalNoteGenerator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &EducationalNoteGenerator{completer: completer, model: model, language: language, logger: logger}
}

// GenerateNote follows the same contract as Synthesize: ok=false instead of an error
func (g *EducationalNoteGenerator) GenerateNote(ctx context.Context, conditionName string, data models.ClinicalData) (string, bool) {
	if g.completer == nil {
		g.logger.Warn("educational note skipped: no generative backend configured")
		metrics.RecordDegraded(degradedEducationalNote)
		return "", false
	}

	text, err := g.completer.Complete(ctx, buildEducatorMessages(conditionName, data, g.language), CompletionParams{
		Model:       g.model,
		Temperature: educatorTemperature,
		MaxTokens:   educatorMaxTokens,
	})
	if err != nil {
		g.logger.Warnf("educational note for %q failed: %v", conditionName, err)
		metrics.RecordDegraded(degradedEducationalNote)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warnf("educational note for %q was empty", conditionName)
		metrics.RecordDegraded(degradedEducationalNote)
		return "", false
	}
	return text, true
}
