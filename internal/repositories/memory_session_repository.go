package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ehr-chatbot/internal/models"
)

type memorySession struct {
	session  models.Session
	messages []models.Message
}

// MemorySessionRepository keeps sessions in process memory. Used for local runs and tests.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memorySession
}

// NewMemorySessionRepository creates an empty in-memory store
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[uuid.UUID]*memorySession)}
}

// Create stores a copy of a new session; UpdatedAt starts equal to CreatedAt
func (r *MemorySessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := validateNewSession(session); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return NewSessionRepositoryError("create", session.ID, models.ErrInvalidInput, "session already exists")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.CreatedAt

	stored := *session
	stored.ClinicalData = copyClinicalData(session.ClinicalData)
	r.sessions[session.ID] = &memorySession{session: stored}
	return nil
}

// Get returns a copy of the session owned by ownerID
func (r *MemorySessionRepository) Get(ctx context.Context, sessionID uuid.UUID, ownerID int64) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, err := r.owned("get", sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	return cloneSession(entry.session), nil
}

// ListByOwner summarizes the owner's sessions, most recently updated first
func (r *MemorySessionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]models.SessionSummary, 0)
	for _, entry := range r.sessions {
		if entry.session.OwnerUserID != ownerID {
			continue
		}
		summaries = append(summaries, models.SessionSummary{
			ID:            entry.session.ID,
			ConditionID:   entry.session.ConditionID,
			ConditionName: entry.session.ConditionName,
			Preview:       models.BuildPreview(entry.messages),
			MessageCount:  len(entry.messages),
			Stats:         entry.session.Stats,
			CreatedAt:     entry.session.CreatedAt,
			UpdatedAt:     entry.session.UpdatedAt,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete removes the session together with its messages
func (r *MemorySessionRepository) Delete(ctx context.Context, sessionID uuid.UUID, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.owned("delete", sessionID, ownerID); err != nil {
		return err
	}
	delete(r.sessions, sessionID)
	return nil
}

// AppendMessage adds msg to the end of the log and bumps UpdatedAt
func (r *MemorySessionRepository) AppendMessage(ctx context.Context, sessionID uuid.UUID, ownerID int64, msg models.Message) error {
	if err := validateMessage(sessionID, msg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.owned("append_message", sessionID, ownerID)
	if err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	entry.messages = append(entry.messages, msg)
	entry.session.UpdatedAt = msg.Timestamp
	return nil
}

// Messages returns the session's message log in append order
func (r *MemorySessionRepository) Messages(ctx context.Context, sessionID uuid.UUID, ownerID int64) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, err := r.owned("messages", sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, len(entry.messages))
	copy(out, entry.messages)
	return out, nil
}

// UpdateStats replaces the session counters
func (r *MemorySessionRepository) UpdateStats(ctx context.Context, sessionID uuid.UUID, ownerID int64, stats models.SessionStats) error {
	if !stats.Consistent() {
		return NewSessionRepositoryError("update_stats", sessionID, models.ErrInvalidInput, "inconsistent stats")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.owned("update_stats", sessionID, ownerID)
	if err != nil {
		return err
	}
	entry.session.Stats = stats
	return nil
}

// UpdateClinicalData replaces the session's clinical data
func (r *MemorySessionRepository) UpdateClinicalData(ctx context.Context, sessionID uuid.UUID, ownerID int64, data models.ClinicalData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.owned("update_clinical_data", sessionID, ownerID)
	if err != nil {
		return err
	}
	entry.session.ClinicalData = copyClinicalData(data)
	return nil
}

// SetEducationalNote stores the note on the session
func (r *MemorySessionRepository) SetEducationalNote(ctx context.Context, sessionID uuid.UUID, ownerID int64, note models.EducationalNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.owned("set_educational_note", sessionID, ownerID)
	if err != nil {
		return err
	}
	entry.session.EducationalNote = &note
	return nil
}

// Ping always succeeds
func (r *MemorySessionRepository) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (r *MemorySessionRepository) Close() error { return nil }

// owned must be called with the lock held
func (r *MemorySessionRepository) owned(op string, sessionID uuid.UUID, ownerID int64) (*memorySession, error) {
	entry, ok := r.sessions[sessionID]
	if !ok || entry.session.OwnerUserID != ownerID {
		return nil, SessionNotFoundError(op, sessionID)
	}
	return entry, nil
}

func cloneSession(s models.Session) *models.Session {
	out := s
	out.ClinicalData = copyClinicalData(s.ClinicalData)
	if s.EducationalNote != nil {
		note := *s.EducationalNote
		out.EducationalNote = &note
	}
	return &out
}

func copyClinicalData(in models.ClinicalData) models.ClinicalData {
	out := make(models.ClinicalData, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
