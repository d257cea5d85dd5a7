package services

import (
	"testing"

	"ehr-chatbot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	const expected = "cond_type_2_diabetes"
	thresholds := DefaultThresholds()

	match := func(conditionID string, score float64) *models.RetrievalMatch {
		return &models.RetrievalMatch{
			AnswerText:           "answer",
			MatchedConditionID:   conditionID,
			MatchedConditionName: "Name of " + conditionID,
			Score:                score,
			FollowUp:             "follow up?",
		}
	}

	tests := []struct {
		name  string
		match *models.RetrievalMatch
		want  models.ClassifiedResponse
	}{
		{"nil match", nil, models.FallbackRequired{}},
		{"direct", match(expected, 0.95), models.DirectAnswer{AnswerText: "answer", FollowUp: "follow up?"}},
		{"direct at threshold", match(expected, 0.89), models.DirectAnswer{AnswerText: "answer", FollowUp: "follow up?"}},
		{"clarify just below direct", match(expected, 0.8899), models.Clarification{Message: clarificationMessage}},
		{"clarify at threshold", match(expected, 0.60), models.Clarification{Message: clarificationMessage}},
		{"fallback below clarify", match(expected, 0.5999), models.FallbackRequired{}},
		{"fallback zero", match(expected, 0), models.FallbackRequired{}},
		{"mismatch high score", match("cond_asthma", 0.97),
			models.ConditionMismatch{Message: mismatchMessage, DetectedConditionName: "Name of cond_asthma"}},
		{"mismatch at threshold", match("cond_asthma", 0.80),
			models.ConditionMismatch{Message: mismatchMessage, DetectedConditionName: "Name of cond_asthma"}},
		{"wrong condition below mismatch clarifies", match("cond_asthma", 0.75), models.Clarification{Message: clarificationMessage}},
		{"wrong condition low score falls back", match("cond_asthma", 0.3), models.FallbackRequired{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.match, expected, thresholds)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_WrongConditionNeverDirect(t *testing.T) {
	// Mismatch above direct is a misconfiguration, but a foreign answer still must not be served
	odd := Thresholds{Direct: 0.5, Mismatch: 0.9, Clarify: 0.1}
	got := Classify(&models.RetrievalMatch{MatchedConditionID: "other", Score: 0.7}, "mine", odd)
	assert.Equal(t, models.ResponseClarification, got.ResponseType())
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		t       Thresholds
		wantErr int
	}{
		{"defaults", DefaultThresholds(), 0},
		{"all equal", Thresholds{Direct: 0.7, Mismatch: 0.7, Clarify: 0.7}, 0},
		{"out of range", Thresholds{Direct: 1.2, Mismatch: 0.8, Clarify: -0.1}, 2},
		{"clarify above mismatch", Thresholds{Direct: 0.9, Mismatch: 0.5, Clarify: 0.6}, 1},
		{"mismatch above direct", Thresholds{Direct: 0.7, Mismatch: 0.8, Clarify: 0.6}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.t.Validate(), tt.wantErr)
		})
	}
}
