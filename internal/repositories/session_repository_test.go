package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehr-chatbot/internal/models"
)

const (
	ownerA int64 = 101
	ownerB int64 = 202
)

func newTestSession(owner int64) *models.Session {
	return &models.Session{
		ID:            uuid.New(),
		OwnerUserID:   owner,
		ConditionID:   "cond_asthma",
		ConditionName: "Asthma",
		ClinicalData:  models.ClinicalData{"Age": "34"},
		CreatedAt:     time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond),
	}
}

// runSessionRepositoryContract exercises behaviour every store must share
func runSessionRepositoryContract(t *testing.T, newRepo func(t *testing.T) SessionRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))

		got, err := repo.Get(ctx, s.ID, ownerA)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, "Asthma", got.ConditionName)
		assert.Equal(t, "34", got.ClinicalData["Age"])
		assert.Equal(t, models.SessionStats{}, got.Stats)
		assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))
		assert.Error(t, repo.Create(ctx, s))
	})

	t.Run("invalid session rejected", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		s.ConditionID = ""
		err := repo.Create(ctx, s)
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("non-owner sees not found", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))

		_, err := repo.Get(ctx, s.ID, ownerB)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		_, err = repo.Messages(ctx, s.ID, ownerB)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		err = repo.AppendMessage(ctx, s.ID, ownerB, models.NewUserMessage("hi", time.Now()))
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		err = repo.Delete(ctx, s.ID, ownerB)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		_, err = repo.Get(ctx, s.ID, ownerA)
		assert.NoError(t, err, "failed delete by non-owner must not remove the session")
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, uuid.New(), ownerA)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		var repoErr *SessionRepositoryError
		assert.True(t, errors.As(err, &repoErr))
		assert.Equal(t, "get", repoErr.Operation)
	})

	t.Run("append keeps order and bumps updated_at", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))

		base := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.AppendMessage(ctx, s.ID, ownerA, models.NewUserMessage("first", base)))
		require.NoError(t, repo.AppendMessage(ctx, s.ID, ownerA,
			models.NewBotMessage("second", models.ConfidenceHigh, base.Add(time.Second))))

		msgs, err := repo.Messages(ctx, s.ID, ownerA)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, models.RoleUser, msgs[0].Role)
		assert.Equal(t, models.ConfidenceHigh, msgs[1].ConfidenceLevel)

		got, err := repo.Get(ctx, s.ID, ownerA)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Second)), "updated_at %v", got.UpdatedAt)
	})

	t.Run("malformed message rejected", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))

		err := repo.AppendMessage(ctx, s.ID, ownerA, models.NewBotMessage("answer", "certain", time.Now()))
		assert.True(t, errors.Is(err, models.ErrInvalidInput))

		err = repo.AppendMessage(ctx, s.ID, ownerA, models.Message{Role: "system", Content: "x"})
		assert.True(t, errors.Is(err, models.ErrInvalidInput))

		msgs, err := repo.Messages(ctx, s.ID, ownerA)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("stats clinical data and note", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))

		stats := models.SessionStats{TotalQueries: 3, HighConfidence: 1, MediumConfidence: 1, LowConfidence: 1}
		require.NoError(t, repo.UpdateStats(ctx, s.ID, ownerA, stats))

		bad := models.SessionStats{TotalQueries: 5, HighConfidence: 1}
		assert.True(t, errors.Is(repo.UpdateStats(ctx, s.ID, ownerA, bad), models.ErrInvalidInput))

		require.NoError(t, repo.UpdateClinicalData(ctx, s.ID, ownerA, models.ClinicalData{"Weight": "70kg"}))

		note := models.EducationalNote{Condition: "cond_asthma", ConditionName: "Asthma", Note: "Asthma is..."}
		require.NoError(t, repo.SetEducationalNote(ctx, s.ID, ownerA, note))

		got, err := repo.Get(ctx, s.ID, ownerA)
		require.NoError(t, err)
		assert.Equal(t, stats, got.Stats)
		assert.Equal(t, models.ClinicalData{"Weight": "70kg"}, got.ClinicalData, "clinical data is replaced wholesale")
		require.NotNil(t, got.EducationalNote)
		assert.Equal(t, note, *got.EducationalNote)

		assert.True(t, errors.Is(repo.UpdateStats(ctx, s.ID, ownerB, stats), models.ErrSessionNotFound))
	})

	t.Run("list by owner", func(t *testing.T) {
		repo := newRepo(t)
		older := newTestSession(ownerA)
		newer := newTestSession(ownerA)
		other := newTestSession(ownerB)
		for _, s := range []*models.Session{older, newer, other} {
			require.NoError(t, repo.Create(ctx, s))
		}

		base := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.AppendMessage(ctx, older.ID, ownerA,
			models.NewBotMessage("note", models.ConfidenceEducationalNote, base)))
		require.NoError(t, repo.AppendMessage(ctx, older.ID, ownerA,
			models.NewUserMessage("How often should I use my inhaler during a bad week?", base.Add(time.Second))))
		require.NoError(t, repo.AppendMessage(ctx, newer.ID, ownerA,
			models.NewBotMessage("note", models.ConfidenceEducationalNote, base.Add(2*time.Second))))

		list, err := repo.ListByOwner(ctx, ownerA)
		require.NoError(t, err)
		require.Len(t, list, 2)

		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, models.DefaultPreview, list[0].Preview)
		assert.Equal(t, 1, list[0].MessageCount)

		assert.Equal(t, older.ID, list[1].ID)
		assert.Equal(t, "How often should I use my inhaler during a bad wee", list[1].Preview)
		assert.Equal(t, 2, list[1].MessageCount)

		empty, err := repo.ListByOwner(ctx, 999)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		s := newTestSession(ownerA)
		require.NoError(t, repo.Create(ctx, s))
		require.NoError(t, repo.AppendMessage(ctx, s.ID, ownerA, models.NewUserMessage("hi", time.Now())))

		require.NoError(t, repo.Delete(ctx, s.ID, ownerA))

		_, err := repo.Get(ctx, s.ID, ownerA)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))

		list, err := repo.ListByOwner(ctx, ownerA)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(ctx))
	})
}

func TestMemorySessionRepository(t *testing.T) {
	runSessionRepositoryContract(t, func(t *testing.T) SessionRepository {
		return NewMemorySessionRepository()
	})
}

func TestRedisSessionRepository(t *testing.T) {
	runSessionRepositoryContract(t, func(t *testing.T) SessionRepository {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisSessionRepository(client, 0)
	})
}

func TestRedisSessionRepository_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	s := newTestSession(ownerA)
	require.NoError(t, repo.Create(ctx, s))
	require.NoError(t, repo.AppendMessage(ctx, s.ID, ownerA, models.NewUserMessage("hi", time.Now())))

	assert.Equal(t, time.Hour, mr.TTL(sessionKey(s.ID)))
	assert.Equal(t, time.Hour, mr.TTL(messagesKey(s.ID)))

	mr.FastForward(2 * time.Hour)

	_, err := repo.Get(ctx, s.ID, ownerA)
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))

	list, err := repo.ListByOwner(ctx, ownerA)
	require.NoError(t, err)
	assert.Empty(t, list)

	members, err := client.ZRange(ctx, userSessionsKey(ownerA), 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, members, "expired ids are pruned from the owner index")
}

func TestRedisSessionRepository_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	repo := NewRedisSessionRepository(client, 0)

	mr.Close()

	_, err := repo.Get(context.Background(), uuid.New(), ownerA)
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrSessionNotFound))
	assert.Error(t, repo.Ping(context.Background()))
}

func TestSessionRepositoryError(t *testing.T) {
	id := uuid.New()
	err := NewSessionRepositoryError("update_stats", id, errors.New("boom"), "write failed")
	assert.Equal(t, "update_stats (session: "+id.String()+"): write failed: boom", err.Error())

	plain := NewSessionRepositoryError("list", uuid.Nil, nil, "")
	assert.Equal(t, "list", plain.Error())
}
