package models

import "github.com/google/uuid"

// BasicResponse is returned by the banner endpoint
type BasicResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// HealthResponse reports the state of each backend
type HealthResponse struct {
	Status   string            `json:"status"`   // "ok", "degraded" or "unavailable"
	Backends map[string]string `json:"backends"` // backend name -> "ok" or error text
}

// ConditionsResponse lists the registry
type ConditionsResponse struct {
	Success    bool              `json:"success"`
	Conditions map[string]string `json:"conditions"` // id -> display name
}

// StartSessionRequest opens a new conversation
type StartSessionRequest struct {
	ConditionID             string            `json:"condition_id"`
	ConditionName           string            `json:"condition_name,omitempty"` // used for unregistered conditions
	ClinicalData            map[string]string `json:"clinical_data,omitempty"`
	GenerateEducationalNote *bool             `json:"generate_educational_note,omitempty" default:"true"`
}

// WantsEducationalNote reports the note flag; absent means true
func (r StartSessionRequest) WantsEducationalNote() bool {
	return r.GenerateEducationalNote == nil || *r.GenerateEducationalNote
}

// StartSessionResponse carries the new session id and the optional note
type StartSessionResponse struct {
	Success         bool             `json:"success"`
	SessionID       uuid.UUID        `json:"session_id"`
	ConditionID     string           `json:"condition_id"`
	ConditionName   string           `json:"condition_name"`
	Registered      bool             `json:"registered"`
	EducationalNote *EducationalNote `json:"educational_note,omitempty"`
}

// QueryRequest is one user turn
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// TurnResult is the outcome of one conversation turn
type TurnResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	ResponseType    ResponseType    `json:"response_type"`
	Stats           SessionStats    `json:"stats"`
}

// HistoryResponse is the full transcript of a session
type HistoryResponse struct {
	Success         bool             `json:"success"`
	SessionID       uuid.UUID        `json:"session_id"`
	ConditionID     string           `json:"condition_id"`
	ConditionName   string           `json:"condition_name"`
	ClinicalData    ClinicalData     `json:"clinical_data"`
	EducationalNote *EducationalNote `json:"educational_note,omitempty"`
	Messages        []Message        `json:"messages"`
	Stats           SessionStats     `json:"stats"`
}

// SessionsResponse lists the caller's sessions, most recently updated first
type SessionsResponse struct {
	Success  bool             `json:"success"`
	Sessions []SessionSummary `json:"sessions"`
}

// EducationalNoteRequest asks for a note outside of session creation
type EducationalNoteRequest struct {
	ConditionID  string            `json:"condition_id"`
	ClinicalData map[string]string `json:"clinical_data,omitempty"`
}

// EducationalNoteResponse wraps a generated note
type EducationalNoteResponse struct {
	Success bool            `json:"success"`
	Note    EducationalNote `json:"educational_note"`
}

// UpdateClinicalDataRequest replaces a session's clinical data wholesale
type UpdateClinicalDataRequest struct {
	SessionID    string            `json:"session_id"`
	ClinicalData map[string]string `json:"clinical_data"`
}

// UpdateClinicalDataResponse echoes the stored (mapped) clinical data
type UpdateClinicalDataResponse struct {
	Success      bool         `json:"success"`
	ClinicalData ClinicalData `json:"clinical_data"`
}

// StatsResponse returns a session's counters
type StatsResponse struct {
	Success   bool         `json:"success"`
	SessionID uuid.UUID    `json:"session_id"`
	Stats     SessionStats `json:"stats"`
}

// DeleteSessionResponse confirms a deletion
type DeleteSessionResponse struct {
	Success   bool      `json:"success"`
	SessionID uuid.UUID `json:"session_id"`
}
