package models

// RetrievalMatch is the single best knowledge base hit for a query
type RetrievalMatch struct {
	AnswerText           string  `json:"answer_text"`
	MatchedConditionID   string  `json:"matched_condition_id"`
	MatchedConditionName string  `json:"matched_condition_name"`
	Score                float64 `json:"score"` // similarity in [0, 1]
	FollowUp             string  `json:"follow_up,omitempty"`
}
