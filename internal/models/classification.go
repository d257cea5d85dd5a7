package models

// ResponseType reports which pipeline path produced a bot answer
type ResponseType string

const (
	ResponseDirectAnswer      ResponseType = "direct_answer"
	ResponseClarification     ResponseType = "clarification"
	ResponseConditionMismatch ResponseType = "condition_mismatch"
	ResponseLLMFallback       ResponseType = "llm_fallback"
)

// ClassifiedResponse is the outcome of classifying a retrieval match.
// It is implemented only by DirectAnswer, Clarification, ConditionMismatch and FallbackRequired.
type ClassifiedResponse interface {
	ResponseType() ResponseType
	classified()
}

// DirectAnswer is served verbatim from the knowledge base
type DirectAnswer struct {
	AnswerText string
	FollowUp   string
}

// Clarification asks the user to rephrase; Message is passed to the synthesizer as a hint
type Clarification struct {
	Message string
}

// ConditionMismatch means the best match belongs to another condition
type ConditionMismatch struct {
	Message               string
	DetectedConditionName string
}

// FallbackRequired hands the query to the generative backend
type FallbackRequired struct {
	ContextHint string
}

func (DirectAnswer) ResponseType() ResponseType      { return ResponseDirectAnswer }
func (Clarification) ResponseType() ResponseType     { return ResponseClarification }
func (ConditionMismatch) ResponseType() ResponseType { return ResponseConditionMismatch }
func (FallbackRequired) ResponseType() ResponseType  { return ResponseLLMFallback }

func (DirectAnswer) classified()      {}
func (Clarification) classified()     {}
func (ConditionMismatch) classified() {}
func (FallbackRequired) classified()  {}
