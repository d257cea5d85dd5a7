package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"ehr-chatbot/internal/models"
)

// PostgresSessionRepository implements SessionRepository on the chat_sessions and chat_messages tables
type PostgresSessionRepository struct {
	db *sql.DB
}

// NewPostgresSessionRepository creates a repository over an open pool; the schema is applied by db.MigratePostgres
func NewPostgresSessionRepository(conn *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: conn}
}

const (
	insertSessionSQL = `INSERT INTO chat_sessions
		(session_id, owner_user_id, condition_id, condition_name, clinical_data, educational_note,
		 total_queries, high_confidence, medium_confidence, low_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	selectSessionSQL = `SELECT session_id, owner_user_id, condition_id, condition_name, clinical_data, educational_note,
		total_queries, high_confidence, medium_confidence, low_confidence, created_at, updated_at
		FROM chat_sessions WHERE session_id = $1 AND owner_user_id = $2`

	listSessionsSQL = `SELECT s.session_id, s.condition_id, s.condition_name,
		s.total_queries, s.high_confidence, s.medium_confidence, s.low_confidence, s.created_at, s.updated_at,
		COALESCE((SELECT m.content FROM chat_messages m
			WHERE m.session_id = s.session_id AND m.role = 'user' ORDER BY m.id LIMIT 1), ''),
		(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.session_id)
		FROM chat_sessions s WHERE s.owner_user_id = $1 ORDER BY s.updated_at DESC`

	deleteSessionSQL = `DELETE FROM chat_sessions WHERE session_id = $1 AND owner_user_id = $2`

	touchSessionSQL = `UPDATE chat_sessions SET updated_at = $3 WHERE session_id = $1 AND owner_user_id = $2`

	insertMessageSQL = `INSERT INTO chat_messages (session_id, role, content, confidence_level, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	selectMessagesSQL = `SELECT role, content, confidence_level, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY id`

	sessionExistsSQL = `SELECT 1 FROM chat_sessions WHERE session_id = $1 AND owner_user_id = $2`

	updateStatsSQL = `UPDATE chat_sessions SET total_queries = $3, high_confidence = $4, medium_confidence = $5, low_confidence = $6
		WHERE session_id = $1 AND owner_user_id = $2`

	updateClinicalDataSQL = `UPDATE chat_sessions SET clinical_data = $3 WHERE session_id = $1 AND owner_user_id = $2`

	updateNoteSQL = `UPDATE chat_sessions SET educational_note = $3 WHERE session_id = $1 AND owner_user_id = $2`
)

func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := validateNewSession(session); err != nil {
		return err
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.CreatedAt

	clinical, err := json.Marshal(nonNilClinical(session.ClinicalData))
	if err != nil {
		return NewSessionRepositoryError("create", session.ID, err, "failed to marshal clinical data")
	}
	var note interface{}
	if session.EducationalNote != nil {
		b, err := json.Marshal(session.EducationalNote)
		if err != nil {
			return NewSessionRepositoryError("create", session.ID, err, "failed to marshal educational note")
		}
		note = b
	}

	_, err = r.db.ExecContext(ctx, insertSessionSQL,
		session.ID, session.OwnerUserID, session.ConditionID, session.ConditionName, clinical, note,
		session.Stats.TotalQueries, session.Stats.HighConfidence, session.Stats.MediumConfidence, session.Stats.LowConfidence,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return NewSessionRepositoryError("create", session.ID, err, "")
	}
	return nil
}

func (r *PostgresSessionRepository) Get(ctx context.Context, sessionID uuid.UUID, ownerID int64) (*models.Session, error) {
	var (
		s        models.Session
		clinical []byte
		note     []byte
	)

	err := r.db.QueryRowContext(ctx, selectSessionSQL, sessionID, ownerID).Scan(
		&s.ID, &s.OwnerUserID, &s.ConditionID, &s.ConditionName, &clinical, &note,
		&s.Stats.TotalQueries, &s.Stats.HighConfidence, &s.Stats.MediumConfidence, &s.Stats.LowConfidence,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, SessionNotFoundError("get", sessionID)
	}
	if err != nil {
		return nil, NewSessionRepositoryError("get", sessionID, err, "")
	}

	s.ClinicalData = models.ClinicalData{}
	if len(clinical) > 0 {
		if err := json.Unmarshal(clinical, &s.ClinicalData); err != nil {
			return nil, NewSessionRepositoryError("get", sessionID, err, "failed to unmarshal clinical data")
		}
	}
	if len(note) > 0 {
		var n models.EducationalNote
		if err := json.Unmarshal(note, &n); err != nil {
			return nil, NewSessionRepositoryError("get", sessionID, err, "failed to unmarshal educational note")
		}
		s.EducationalNote = &n
	}
	return &s, nil
}

func (r *PostgresSessionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, listSessionsSQL, ownerID)
	if err != nil {
		return nil, NewSessionRepositoryError("list", uuid.Nil, err, "")
	}
	defer rows.Close()

	summaries := make([]models.SessionSummary, 0)
	for rows.Next() {
		var (
			s            models.SessionSummary
			firstMessage string
		)
		if err := rows.Scan(
			&s.ID, &s.ConditionID, &s.ConditionName,
			&s.Stats.TotalQueries, &s.Stats.HighConfidence, &s.Stats.MediumConfidence, &s.Stats.LowConfidence,
			&s.CreatedAt, &s.UpdatedAt, &firstMessage, &s.MessageCount,
		); err != nil {
			return nil, NewSessionRepositoryError("list", uuid.Nil, err, "failed to scan row")
		}

		s.Preview = models.DefaultPreview
		if firstMessage != "" {
			s.Preview = models.BuildPreview([]models.Message{{Role: models.RoleUser, Content: firstMessage}})
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, NewSessionRepositoryError("list", uuid.Nil, err, "")
	}
	return summaries, nil
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, sessionID uuid.UUID, ownerID int64) error {
	return r.execOwned(ctx, "delete", sessionID, deleteSessionSQL, sessionID, ownerID)
}

// AppendMessage inserts the message and bumps updated_at in one transaction
func (r *PostgresSessionRepository) AppendMessage(ctx context.Context, sessionID uuid.UUID, ownerID int64, msg models.Message) error {
	if err := validateMessage(sessionID, msg); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, touchSessionSQL, sessionID, ownerID, msg.Timestamp)
	if err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return SessionNotFoundError("append_message", sessionID)
	}

	level := sql.NullString{String: string(msg.ConfidenceLevel), Valid: msg.ConfidenceLevel != ""}
	if _, err := tx.ExecContext(ctx, insertMessageSQL, sessionID, string(msg.Role), msg.Content, level, msg.Timestamp); err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "")
	}

	if err := tx.Commit(); err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "failed to commit")
	}
	return nil
}

func (r *PostgresSessionRepository) Messages(ctx context.Context, sessionID uuid.UUID, ownerID int64) ([]models.Message, error) {
	var one int
	err := r.db.QueryRowContext(ctx, sessionExistsSQL, sessionID, ownerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, SessionNotFoundError("messages", sessionID)
	}
	if err != nil {
		return nil, NewSessionRepositoryError("messages", sessionID, err, "")
	}

	rows, err := r.db.QueryContext(ctx, selectMessagesSQL, sessionID)
	if err != nil {
		return nil, NewSessionRepositoryError("messages", sessionID, err, "")
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg   models.Message
			role  string
			level sql.NullString
		)
		if err := rows.Scan(&role, &msg.Content, &level, &msg.Timestamp); err != nil {
			return nil, NewSessionRepositoryError("messages", sessionID, err, "failed to scan row")
		}
		msg.Role = models.Role(role)
		if level.Valid {
			msg.ConfidenceLevel = models.ConfidenceLevel(level.String)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, NewSessionRepositoryError("messages", sessionID, err, "")
	}
	return messages, nil
}

func (r *PostgresSessionRepository) UpdateStats(ctx context.Context, sessionID uuid.UUID, ownerID int64, stats models.SessionStats) error {
	if !stats.Consistent() {
		return NewSessionRepositoryError("update_stats", sessionID, models.ErrInvalidInput, "inconsistent stats")
	}
	return r.execOwned(ctx, "update_stats", sessionID, updateStatsSQL,
		sessionID, ownerID, stats.TotalQueries, stats.HighConfidence, stats.MediumConfidence, stats.LowConfidence)
}

func (r *PostgresSessionRepository) UpdateClinicalData(ctx context.Context, sessionID uuid.UUID, ownerID int64, data models.ClinicalData) error {
	payload, err := json.Marshal(nonNilClinical(data))
	if err != nil {
		return NewSessionRepositoryError("update_clinical_data", sessionID, err, "failed to marshal clinical data")
	}
	return r.execOwned(ctx, "update_clinical_data", sessionID, updateClinicalDataSQL, sessionID, ownerID, payload)
}

func (r *PostgresSessionRepository) SetEducationalNote(ctx context.Context, sessionID uuid.UUID, ownerID int64, note models.EducationalNote) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return NewSessionRepositoryError("set_educational_note", sessionID, err, "failed to marshal educational note")
	}
	return r.execOwned(ctx, "set_educational_note", sessionID, updateNoteSQL, sessionID, ownerID, payload)
}

func (r *PostgresSessionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresSessionRepository) Close() error {
	return r.db.Close()
}

// execOwned runs a statement scoped by (session_id, owner_user_id) and maps zero affected rows to not found
func (r *PostgresSessionRepository) execOwned(ctx context.Context, op string, sessionID uuid.UUID, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return NewSessionRepositoryError(op, sessionID, err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewSessionRepositoryError(op, sessionID, err, "")
	}
	if n == 0 {
		return SessionNotFoundError(op, sessionID)
	}
	return nil
}

func nonNilClinical(data models.ClinicalData) models.ClinicalData {
	if data == nil {
		return models.ClinicalData{}
	}
	return data
}
