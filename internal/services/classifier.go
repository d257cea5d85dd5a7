package services

import (
	"fmt"

	"ehr-chatbot/internal/models"
)

// Default confidence bands
const (
	DefaultDirectThreshold   = 0.89
	DefaultMismatchThreshold = 0.80
	DefaultClarifyThreshold  = 0.60
)

const (
	mismatchMessage      = "The best match belongs to a different condition."
	clarificationMessage = "I found related information but I'm not fully sure it answers your question. Could you rephrase it or add more detail?"
)

// Thresholds are the score cut-offs used by Classify. A score equal to a
// threshold belongs to the band above it.
type Thresholds struct {
	Direct   float64 `mapstructure:"direct" json:"direct"`
	Mismatch float64 `mapstructure:"mismatch" json:"mismatch"`
	Clarify  float64 `mapstructure:"clarify" json:"clarify"`
}

// DefaultThresholds returns the standard bands
func DefaultThresholds() Thresholds {
	return Thresholds{
		Direct:   DefaultDirectThreshold,
		Mismatch: DefaultMismatchThreshold,
		Clarify:  DefaultClarifyThreshold,
	}
}

// Validate requires 0 <= clarify <= mismatch <= direct <= 1
func (t Thresholds) Validate() []error {
	var errs []error
	bands := []struct {
		name  string
		value float64
	}{{"direct", t.Direct}, {"mismatch", t.Mismatch}, {"clarify", t.Clarify}}
	for _, b := range bands {
		if b.value < 0 || b.value > 1 {
			errs = append(errs, fmt.Errorf("classifier.%s must be within [0, 1], got %v", b.name, b.value))
		}
	}
	if t.Clarify > t.Mismatch {
		errs = append(errs, fmt.Errorf("classifier.clarify (%v) must not exceed classifier.mismatch (%v)", t.Clarify, t.Mismatch))
	}
	if t.Mismatch > t.Direct {
		errs = append(errs, fmt.Errorf("classifier.mismatch (%v) must not exceed classifier.direct (%v)", t.Mismatch, t.Direct))
	}
	return errs
}

// Classify maps a retrieval match onto one response path:
//  1. confident match for another condition -> ConditionMismatch
//  2. score >= Direct -> DirectAnswer
//  3. score >= Clarify -> Clarification
//  4. otherwise, or no match -> FallbackRequired
func Classify(match *models.RetrievalMatch, expectedConditionID string, t Thresholds) models.ClassifiedResponse {
	if match == nil {
		return models.FallbackRequired{}
	}

	wrongCondition := match.MatchedConditionID != expectedConditionID
	if wrongCondition && match.Score >= t.Mismatch {
		return models.ConditionMismatch{
			Message:               mismatchMessage,
			DetectedConditionName: match.MatchedConditionName,
		}
	}

	// A wrong-condition hit below the mismatch band is never served directly
	if !wrongCondition && match.Score >= t.Direct {
		return models.DirectAnswer{
			AnswerText: match.AnswerText,
			FollowUp:   match.FollowUp,
		}
	}

	if match.Score >= t.Clarify {
		return models.Clarification{Message: clarificationMessage}
	}

	return models.FallbackRequired{}
}
