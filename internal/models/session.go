package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message in a session log
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ConfidenceLevel labels how trustworthy a bot message is
type ConfidenceLevel string

const (
	ConfidenceHigh            ConfidenceLevel = "high"
	ConfidenceMedium          ConfidenceLevel = "medium"
	ConfidenceLow             ConfidenceLevel = "low"
	ConfidenceEducationalNote ConfidenceLevel = "educational-note"
)

// Valid reports whether the level is one of the known labels
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceEducationalNote:
		return true
	}
	return false
}

// Message is a single entry in a session's append-only log
type Message struct {
	Role            Role            `json:"role"`
	Content         string          `json:"content"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Validate checks the role and that only bot messages carry a known confidence label
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser:
		if m.ConfidenceLevel != "" {
			return fmt.Errorf("%w: user messages carry no confidence level", ErrInvalidInput)
		}
	case RoleBot:
		if !m.ConfidenceLevel.Valid() {
			return fmt.Errorf("%w: unknown confidence level %q", ErrInvalidInput, m.ConfidenceLevel)
		}
	default:
		return fmt.Errorf("%w: unknown message role %q", ErrInvalidInput, m.Role)
	}
	return nil
}

// NewUserMessage creates a user message stamped with the given time
func NewUserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: at}
}

// NewBotMessage creates a bot message carrying a confidence label
func NewBotMessage(content string, level ConfidenceLevel, at time.Time) Message {
	return Message{Role: RoleBot, Content: content, ConfidenceLevel: level, Timestamp: at}
}

// SessionStats counts answered queries per confidence level.
// TotalQueries always equals HighConfidence + MediumConfidence + LowConfidence.
type SessionStats struct {
	TotalQueries     int `json:"total_queries"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}

// Record counts one answered query. Levels that are not query outcomes are ignored.
func (s *SessionStats) Record(level ConfidenceLevel) {
	switch level {
	case ConfidenceHigh:
		s.HighConfidence++
	case ConfidenceMedium:
		s.MediumConfidence++
	case ConfidenceLow:
		s.LowConfidence++
	default:
		return
	}
	s.TotalQueries++
}

// Consistent reports whether the totals invariant holds
func (s SessionStats) Consistent() bool {
	return s.TotalQueries >= 0 && s.HighConfidence >= 0 && s.MediumConfidence >= 0 && s.LowConfidence >= 0 &&
		s.TotalQueries == s.HighConfidence+s.MediumConfidence+s.LowConfidence
}

// EducationalNote is the personalized explanation generated when a session starts
type EducationalNote struct {
	Condition     string `json:"condition"`
	ConditionName string `json:"condition_name"`
	Note          string `json:"note"`
}

// Session is one conversation owned by a single user about a single condition
type Session struct {
	ID              uuid.UUID        `json:"session_id"`
	OwnerUserID     int64            `json:"owner_user_id"`
	ConditionID     string           `json:"condition_id"`
	ConditionName   string           `json:"condition_name"`
	ClinicalData    ClinicalData     `json:"clinical_data"`
	EducationalNote *EducationalNote `json:"educational_note,omitempty"`
	Stats           SessionStats     `json:"stats"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SessionSummary is the sidebar view of a session
type SessionSummary struct {
	ID            uuid.UUID    `json:"session_id"`
	ConditionID   string       `json:"condition_id"`
	ConditionName string       `json:"condition_name"`
	Preview       string       `json:"preview"`
	MessageCount  int          `json:"message_count"`
	Stats         SessionStats `json:"stats"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"last_updated"`
}

const (
	// PreviewMaxRunes bounds the preview taken from the first user message
	PreviewMaxRunes = 50
	// DefaultPreview is shown for sessions without user messages
	DefaultPreview = "New chat"
)

// BuildPreview derives a sidebar preview from the first user message
func BuildPreview(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > PreviewMaxRunes {
			return string(runes[:PreviewMaxRunes])
		}
		return m.Content
	}
	return DefaultPreview
}
