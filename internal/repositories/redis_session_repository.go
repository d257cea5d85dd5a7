package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ehr-chatbot/internal/models"
)

const (
	// Redis key prefixes for sessions
	sessionKeyPrefix         = "session:"
	sessionMessagesKeyPrefix = "session:messages:"
	sessionPreviewKeyPrefix  = "session:preview:"
	userSessionsKeyPrefix    = "sessions:user:"

	maxWatchRetries = 5
)

// stringGetter is satisfied by both *redis.Client and *redis.Tx
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSessionRepository implements SessionRepository using Redis.
// The session record is a JSON string, the log is a list and each owner has a
// sorted set of session ids scored by updated_at.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration // 0 keeps sessions forever
}

// NewRedisSessionRepository creates a new Redis-based session repository
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(id uuid.UUID) string  { return sessionKeyPrefix + id.String() }
func messagesKey(id uuid.UUID) string { return sessionMessagesKeyPrefix + id.String() }
func previewKey(id uuid.UUID) string  { return sessionPreviewKeyPrefix + id.String() }
func userSessionsKey(ownerID int64) string {
	return userSessionsKeyPrefix + strconv.FormatInt(ownerID, 10)
}

// Create stores a new session
func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := validateNewSession(session); err != nil {
		return err
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	if session.ClinicalData == nil {
		session.ClinicalData = models.ClinicalData{}
	}

	data, err := json.Marshal(session)
	if err != nil {
		return NewSessionRepositoryError("create", session.ID, err, "failed to marshal session")
	}

	pipe := r.client.TxPipeline()
	created := pipe.SetNX(ctx, sessionKey(session.ID), data, r.ttl)
	pipe.ZAdd(ctx, userSessionsKey(session.OwnerUserID), redis.Z{
		Score:  float64(session.UpdatedAt.UnixMilli()),
		Member: session.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return NewSessionRepositoryError("create", session.ID, err, "failed to execute transaction")
	}
	if !created.Val() {
		return NewSessionRepositoryError("create", session.ID, models.ErrInvalidInput, "session already exists")
	}
	return nil
}

// Get retrieves a session owned by ownerID
func (r *RedisSessionRepository) Get(ctx context.Context, sessionID uuid.UUID, ownerID int64) (*models.Session, error) {
	session, err := r.load(ctx, r.client, "get", sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerUserID != ownerID {
		return nil, SessionNotFoundError("get", sessionID)
	}
	return session, nil
}

// ListByOwner returns summaries ordered by updated_at, newest first
func (r *RedisSessionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.SessionSummary, error) {
	ids, err := r.client.ZRevRange(ctx, userSessionsKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, NewSessionRepositoryError("list", uuid.Nil, err, "")
	}
	if len(ids) == 0 {
		return []models.SessionSummary{}, nil
	}

	type pending struct {
		id      uuid.UUID
		record  *redis.StringCmd
		preview *redis.StringCmd
		count   *redis.IntCmd
	}

	pipe := r.client.Pipeline()
	batch := make([]pending, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		batch = append(batch, pending{
			id:      id,
			record:  pipe.Get(ctx, sessionKey(id)),
			preview: pipe.Get(ctx, previewKey(id)),
			count:   pipe.LLen(ctx, messagesKey(id)),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, NewSessionRepositoryError("list", uuid.Nil, err, "failed to execute pipeline")
	}

	summaries := make([]models.SessionSummary, 0, len(batch))
	var stale []interface{}
	for _, p := range batch {
		raw, err := p.record.Result()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, p.id.String())
			continue
		}
		if err != nil {
			return nil, NewSessionRepositoryError("list", p.id, err, "")
		}

		var session models.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, NewSessionRepositoryError("list", p.id, err, "failed to unmarshal session")
		}
		if session.OwnerUserID != ownerID {
			continue
		}

		preview := p.preview.Val()
		if preview == "" {
			preview = models.DefaultPreview
		}

		summaries = append(summaries, models.SessionSummary{
			ID:            session.ID,
			ConditionID:   session.ConditionID,
			ConditionName: session.ConditionName,
			Preview:       preview,
			MessageCount:  int(p.count.Val()),
			Stats:         session.Stats,
			CreatedAt:     session.CreatedAt,
			UpdatedAt:     session.UpdatedAt,
		})
	}

	// expired sessions leave their id behind in the owner index
	if len(stale) > 0 {
		r.client.ZRem(ctx, userSessionsKey(ownerID), stale...)
	}

	return summaries, nil
}

// Delete removes a session, its log and its index entry
func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID uuid.UUID, ownerID int64) error {
	if _, err := r.Get(ctx, sessionID, ownerID); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID), messagesKey(sessionID), previewKey(sessionID))
	pipe.ZRem(ctx, userSessionsKey(ownerID), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return NewSessionRepositoryError("delete", sessionID, err, "failed to execute transaction")
	}
	return nil
}

// AppendMessage pushes msg onto the log and bumps updated_at in the same transaction
func (r *RedisSessionRepository) AppendMessage(ctx context.Context, sessionID uuid.UUID, ownerID int64, msg models.Message) error {
	if err := validateMessage(sessionID, msg); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return NewSessionRepositoryError("append_message", sessionID, err, "failed to marshal message")
	}

	return r.mutate(ctx, "append_message", sessionID, ownerID,
		func(s *models.Session) error {
			s.UpdatedAt = msg.Timestamp
			return nil
		},
		func(pipe redis.Pipeliner, s *models.Session) {
			pipe.RPush(ctx, messagesKey(sessionID), data)
			if msg.Role == models.RoleUser {
				pipe.SetNX(ctx, previewKey(sessionID), models.BuildPreview([]models.Message{msg}), r.ttl)
			}
			if r.ttl > 0 {
				pipe.Expire(ctx, messagesKey(sessionID), r.ttl)
				pipe.Expire(ctx, previewKey(sessionID), r.ttl)
			}
		})
}

// Messages returns the log in creation order
func (r *RedisSessionRepository) Messages(ctx context.Context, sessionID uuid.UUID, ownerID int64) ([]models.Message, error) {
	if _, err := r.Get(ctx, sessionID, ownerID); err != nil {
		return nil, err
	}

	raw, err := r.client.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, NewSessionRepositoryError("messages", sessionID, err, "")
	}

	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, NewSessionRepositoryError("messages", sessionID, err, "failed to unmarshal message")
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// UpdateStats replaces the counters
func (r *RedisSessionRepository) UpdateStats(ctx context.Context, sessionID uuid.UUID, ownerID int64, stats models.SessionStats) error {
	if !stats.Consistent() {
		return NewSessionRepositoryError("update_stats", sessionID, models.ErrInvalidInput, "inconsistent stats")
	}
	return r.mutate(ctx, "update_stats", sessionID, ownerID, func(s *models.Session) error {
		s.Stats = stats
		return nil
	}, nil)
}

// UpdateClinicalData replaces the clinical data wholesale
func (r *RedisSessionRepository) UpdateClinicalData(ctx context.Context, sessionID uuid.UUID, ownerID int64, data models.ClinicalData) error {
	return r.mutate(ctx, "update_clinical_data", sessionID, ownerID, func(s *models.Session) error {
		s.ClinicalData = data
		if s.ClinicalData == nil {
			s.ClinicalData = models.ClinicalData{}
		}
		return nil
	}, nil)
}

// SetEducationalNote stores the generated note on the session
func (r *RedisSessionRepository) SetEducationalNote(ctx context.Context, sessionID uuid.UUID, ownerID int64, note models.EducationalNote) error {
	return r.mutate(ctx, "set_educational_note", sessionID, ownerID, func(s *models.Session) error {
		s.EducationalNote = &note
		return nil
	}, nil)
}

// Ping checks if Redis is alive
func (r *RedisSessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisSessionRepository) Close() error {
	return r.client.Close()
}

func (r *RedisSessionRepository) load(ctx context.Context, c stringGetter, op string, sessionID uuid.UUID) (*models.Session, error) {
	raw, err := c.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, SessionNotFoundError(op, sessionID)
	}
	if err != nil {
		return nil, NewSessionRepositoryError(op, sessionID, err, "")
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, NewSessionRepositoryError(op, sessionID, err, "failed to unmarshal session")
	}
	return &session, nil
}

// mutate applies change to the stored session under WATCH and commits it together with extra
func (r *RedisSessionRepository) mutate(
	ctx context.Context,
	op string,
	sessionID uuid.UUID,
	ownerID int64,
	change func(*models.Session) error,
	extra func(redis.Pipeliner, *models.Session),
) error {
	key := sessionKey(sessionID)

	txf := func(tx *redis.Tx) error {
		session, err := r.load(ctx, tx, op, sessionID)
		if err != nil {
			return err
		}
		if session.OwnerUserID != ownerID {
			return SessionNotFoundError(op, sessionID)
		}

		if err := change(session); err != nil {
			return err
		}
		data, err := json.Marshal(session)
		if err != nil {
			return NewSessionRepositoryError(op, sessionID, err, "failed to marshal session")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			pipe.ZAdd(ctx, userSessionsKey(ownerID), redis.Z{
				Score:  float64(session.UpdatedAt.UnixMilli()),
				Member: sessionID.String(),
			})
			if extra != nil {
				extra(pipe, session)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var repoErr *SessionRepositoryError
		if err != nil && !errors.As(err, &repoErr) {
			return NewSessionRepositoryError(op, sessionID, err, "failed to execute transaction")
		}
		return err
	}
	return NewSessionRepositoryError(op, sessionID, redis.TxFailedErr, "too much contention")
}
