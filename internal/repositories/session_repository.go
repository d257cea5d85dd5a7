package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ehr-chatbot/internal/models"
)

// SessionRepository stores chat sessions and their message logs.
// Every lookup is keyed by (session id, owner); a session owned by someone else is reported as not found.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID uuid.UUID, ownerID int64) (*models.Session, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.SessionSummary, error)
	Delete(ctx context.Context, sessionID uuid.UUID, ownerID int64) error

	// AppendMessage adds to the log and bumps updated_at
	AppendMessage(ctx context.Context, sessionID uuid.UUID, ownerID int64, msg models.Message) error
	Messages(ctx context.Context, sessionID uuid.UUID, ownerID int64) ([]models.Message, error)

	UpdateStats(ctx context.Context, sessionID uuid.UUID, ownerID int64, stats models.SessionStats) error
	UpdateClinicalData(ctx context.Context, sessionID uuid.UUID, ownerID int64, data models.ClinicalData) error
	SetEducationalNote(ctx context.Context, sessionID uuid.UUID, ownerID int64, note models.EducationalNote) error

	Ping(ctx context.Context) error
	Close() error
}

// SessionRepositoryError represents errors from a session store
type SessionRepositoryError struct {
	Operation string
	SessionID string
	Err       error
	Message   string
}

func (e *SessionRepositoryError) Error() string {
	prefix := e.Operation
	if e.SessionID != "" {
		prefix += " (session: " + e.SessionID + ")"
	}
	if e.Message != "" {
		prefix += ": " + e.Message
	}
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix
}

func (e *SessionRepositoryError) Unwrap() error {
	return e.Err
}

// NewSessionRepositoryError creates a new session repository error
func NewSessionRepositoryError(operation string, sessionID uuid.UUID, err error, message string) *SessionRepositoryError {
	id := ""
	if sessionID != uuid.Nil {
		id = sessionID.String()
	}
	return &SessionRepositoryError{
		Operation: operation,
		SessionID: id,
		Err:       err,
		Message:   message,
	}
}

// SessionNotFoundError wraps models.ErrSessionNotFound
func SessionNotFoundError(operation string, sessionID uuid.UUID) error {
	return NewSessionRepositoryError(operation, sessionID, models.ErrSessionNotFound, "")
}

func validateNewSession(session *models.Session) error {
	if session == nil {
		return NewSessionRepositoryError("create", uuid.Nil, models.ErrInvalidInput, "session is nil")
	}
	if session.ID == uuid.Nil {
		return NewSessionRepositoryError("create", uuid.Nil, models.ErrInvalidInput, "session id is required")
	}
	if session.ConditionID == "" {
		return NewSessionRepositoryError("create", session.ID, models.ErrInvalidInput, "condition id is required")
	}
	if !session.Stats.Consistent() {
		return NewSessionRepositoryError("create", session.ID, models.ErrInvalidInput,
			fmt.Sprintf("inconsistent stats %+v", session.Stats))
	}
	return nil
}

func validateMessage(sessionID uuid.UUID, msg models.Message) error {
	if err := msg.Validate(); err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "invalid message")
	}
	return nil
}
