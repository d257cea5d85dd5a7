package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehr-chatbot/internal/models"
)

func setupPostgresMock(t *testing.T) (*PostgresSessionRepository, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPostgresSessionRepository(conn), mock
}

var sessionColumns = []string{
	"session_id", "owner_user_id", "condition_id", "condition_name", "clinical_data", "educational_note",
	"total_queries", "high_confidence", "medium_confidence", "low_confidence", "created_at", "updated_at",
}

func TestPostgresSessionRepository_Create(t *testing.T) {
	repo, mock := setupPostgresMock(t)
	s := newTestSession(ownerA)

	mock.ExpectExec("INSERT INTO chat_sessions").
		WithArgs(s.ID, ownerA, "cond_asthma", "Asthma", sqlmock.AnyArg(), nil, 0, 0, 0, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.True(t, s.UpdatedAt.Equal(s.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT session_id, owner_user_id").
			WithArgs(id, ownerA).
			WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow(
				id.String(), ownerA, "cond_hypertension", "Hypertension",
				[]byte(`{"Blood pressure":"150/95"}`), []byte(`{"condition":"cond_hypertension","condition_name":"Hypertension","note":"n"}`),
				2, 1, 1, 0, now, now,
			))

		s, err := repo.Get(ctx, id, ownerA)
		require.NoError(t, err)
		assert.Equal(t, id, s.ID)
		assert.Equal(t, "150/95", s.ClinicalData["Blood pressure"])
		require.NotNil(t, s.EducationalNote)
		assert.Equal(t, "n", s.EducationalNote.Note)
		assert.Equal(t, models.SessionStats{TotalQueries: 2, HighConfidence: 1, MediumConfidence: 1}, s.Stats)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		id := uuid.New()
		mock.ExpectQuery("SELECT session_id, owner_user_id").
			WithArgs(id, ownerB).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(ctx, id, ownerB)
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))
	})

	t.Run("driver error", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectQuery("SELECT session_id, owner_user_id").WillReturnError(errors.New("connection reset"))

		_, err := repo.Get(ctx, uuid.New(), ownerA)
		require.Error(t, err)
		assert.False(t, errors.Is(err, models.ErrSessionNotFound))
	})
}

func TestPostgresSessionRepository_AppendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("commits message and touch", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		id := uuid.New()
		at := time.Now().UTC()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE chat_sessions SET updated_at").
			WithArgs(id, ownerA, at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO chat_messages").
			WithArgs(id, "bot", "answer", sqlmock.AnyArg(), at).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.AppendMessage(ctx, id, ownerA, models.NewBotMessage("answer", models.ConfidenceHigh, at))
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back for non-owner", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE chat_sessions SET updated_at").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.AppendMessage(ctx, id, ownerB, models.NewUserMessage("hi", time.Now()))
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed message never reaches the database", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)

		err := repo.AppendMessage(ctx, uuid.New(), ownerA, models.NewBotMessage("answer", "", time.Now()))
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSessionRepository_Messages(t *testing.T) {
	repo, mock := setupPostgresMock(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT 1 FROM chat_sessions").
		WithArgs(id, ownerA).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT role, content, confidence_level, created_at").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"role", "content", "confidence_level", "created_at"}).
			AddRow("user", "question", nil, now).
			AddRow("bot", "answer", "medium", now.Add(time.Second)))

	msgs, err := repo.Messages(context.Background(), id, ownerA)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Empty(t, msgs[0].ConfidenceLevel)
	assert.Equal(t, models.ConfidenceMedium, msgs[1].ConfidenceLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionRepository_ListByOwner(t *testing.T) {
	repo, mock := setupPostgresMock(t)
	first, second := uuid.New(), uuid.New()
	now := time.Now().UTC()

	columns := []string{
		"session_id", "condition_id", "condition_name",
		"total_queries", "high_confidence", "medium_confidence", "low_confidence",
		"created_at", "updated_at", "first_message", "message_count",
	}
	mock.ExpectQuery("FROM chat_sessions s WHERE s.owner_user_id").
		WithArgs(ownerA).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(first.String(), "cond_asthma", "Asthma", 1, 1, 0, 0, now, now, "What is a peak flow meter and how do I read the numbers?", 3).
			AddRow(second.String(), "cond_x", "cond_x", 0, 0, 0, 0, now, now.Add(-time.Hour), "", 1))

	list, err := repo.ListByOwner(context.Background(), ownerA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Len(t, []rune(list[0].Preview), models.PreviewMaxRunes)
	assert.Equal(t, 3, list[0].MessageCount)
	assert.Equal(t, models.DefaultPreview, list[1].Preview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionRepository_Updates(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("stats", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec("UPDATE chat_sessions SET total_queries").
			WithArgs(id, ownerA, 1, 0, 0, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStats(ctx, id, ownerA, models.SessionStats{TotalQueries: 1, LowConfidence: 1})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inconsistent stats never reach the database", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		err := repo.UpdateStats(ctx, id, ownerA, models.SessionStats{TotalQueries: 2})
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clinical data for missing session", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec("UPDATE chat_sessions SET clinical_data").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateClinicalData(ctx, id, ownerB, models.ClinicalData{"Age": "40"})
		assert.True(t, errors.Is(err, models.ErrSessionNotFound))
	})

	t.Run("educational note", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec("UPDATE chat_sessions SET educational_note").
			WithArgs(id, ownerA, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetEducationalNote(ctx, id, ownerA, models.EducationalNote{Condition: "c", ConditionName: "C", Note: "n"})
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec("DELETE FROM chat_sessions").
			WithArgs(id, ownerA).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, id, ownerA))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
