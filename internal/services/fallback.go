package services

import (
	"context"
	"strings"

	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultLanguage         = "English"
	fallbackTemperature     = 0.2
	fallbackMaxTokens       = 400
	educatorTemperature     = 0.3
	educatorMaxTokens       = 1500
	degradedSynthesis       = "synthesis_unavailable"
	degradedEducationalNote = "educational_note_unavailable"
	degradedRetrieval       = "retrieval_unavailable"
)

// FallbackRequest is everything the synthesizer may use to answer
type FallbackRequest struct {
	Query         string
	ConditionName string
	ClinicalData  models.ClinicalData
	History       []models.Message // prior messages, excluding Query
	ContextHint   string
}

// SynthesizerConfig tunes generated answers
type SynthesizerConfig struct {
	Model        string
	Language     string
	HistoryTurns int
}

// FallbackSynthesizer answers with the generative backend when retrieval is not enough
type FallbackSynthesizer struct {
	completer Completer
	config    SynthesizerConfig
	logger    *zap.SugaredLogger
}

// NewFallbackSynthesizer creates a synthesizer; a nil completer is always unavailable
func NewFallbackSynthesizer(completer Completer, config SynthesizerConfig, logger *zap.SugaredLogger) *FallbackSynthesizer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.Language == "" {
		config.Language = DefaultLanguage
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = DefaultHistoryTurns
	}
	return &FallbackSynthesizer{completer: completer, config: config, logger: logger}
}

// Synthesize returns generated text, or ok=false when nothing could be produced.
// It never returns an error; failures are logged.
func (s *FallbackSynthesizer) Synthesize(ctx context.Context, req FallbackRequest) (string, bool) {
	if s.completer == nil {
		s.logger.Warn("fallback synthesis skipped: no generative backend configured")
		metrics.RecordDegraded(degradedSynthesis)
		return "", false
	}

	messages := buildFallbackMessages(req, s.config.Language, s.config.HistoryTurns)
	text, err := s.completer.Complete(ctx, messages, CompletionParams{
		Model:       s.config.Model,
		Temperature: fallbackTemperature,
		MaxTokens:   fallbackMaxTokens,
	})
	if err != nil {
		s.logger.Warnf("fallback synthesis failed: %v", err)
		metrics.RecordDegraded(degradedSynthesis)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("fallback synthesis returned empty text")
		metrics.RecordDegraded(degradedSynthesis)
		return "", false
	}
	return text, true
}
