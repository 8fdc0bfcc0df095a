package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"chatlens/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionColumnNames = []string{
	"id", "session_key", "customer_key", "messages", "conversation_text", "last_message_text",
	"customer_nickname", "customer_user_id", "customer_email", "agent_nickname", "agent_user_id",
	"is_resolved", "resolved_at", "total_messages", "first_message_at", "last_message_at", "work_day",
	"has_attachment", "first_response_minutes", "enrichment_done", "enrichment_summary", "category",
	"sentiment_score", "urgency_score", "created_at", "updated_at",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return &Store{writeClient: NewWriteClientFromDB(db), dimensions: 3}, mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestStore_CreateTables(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analyses \(.*embedding vector\(3\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customer_profiles \(.*profile_embedding vector\(3\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 6; i++ {
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.CreateTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTables_TableFailure(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnError(sql.ErrConnDone)

	assert.Error(t, store.CreateTables(context.Background()))
}

func TestStore_UpsertSession(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2025, 9, 4, 2, 0, 0, 0, time.UTC)

	agg := &models.SessionAggregate{
		SessionKey:    "s1",
		Messages:      models.MessageList{{Fingerprint: "1", Kind: models.KindText, Direction: models.DirectionCustomer, Text: "hi", OccurredAt: now}},
		TotalMessages: 1,
		WorkDay:       "2025-09-04",
	}

	args := anyArgs(18)
	args[0] = "s1"
	mock.ExpectQuery(`INSERT INTO sessions .* ON CONFLICT \(session_key\) DO UPDATE SET .*is_resolved = sessions.is_resolved OR EXCLUDED.is_resolved.*resolved_at = COALESCE\(sessions.resolved_at, EXCLUDED.resolved_at\)`).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(42, now, now))

	require.NoError(t, store.UpsertSession(context.Background(), agg))
	assert.Equal(t, int64(42), agg.ID)
	assert.Equal(t, now, agg.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetSession(t *testing.T) {
	now := time.Date(2025, 9, 4, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
		check     func(t *testing.T, agg *models.SessionAggregate)
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM sessions WHERE session_key = \\$1").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows(sessionColumnNames).AddRow(
						1, "s1", "u-1", []byte(`[{"fingerprint":"1","kind":"text","direction":"customer","text":"hi","occurred_at":"2025-09-04T02:00:00Z"}]`),
						"[09:00] customer: hi", "hi",
						"Lan", "u-1", "", "", "",
						false, nil, 1, now, now, "2025-09-04",
						false, nil, false, nil, nil,
						nil, nil, now, now,
					))
			},
			check: func(t *testing.T, agg *models.SessionAggregate) {
				assert.Equal(t, "s1", agg.SessionKey)
				require.Len(t, agg.Messages, 1)
				assert.Equal(t, "hi", agg.Messages[0].Text)
				assert.Nil(t, agg.ResolvedAt)
				assert.Nil(t, agg.FirstResponseMinutes)
				assert.Equal(t, "Lan", agg.CustomerNickname)
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM sessions").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows(sessionColumnNames))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "database failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM sessions").
					WithArgs("s1").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)
			tt.setupMock(mock)

			agg, err := store.GetSession(context.Background(), "s1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, agg)
			} else {
				require.NoError(t, err)
				tt.check(t, agg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ListUnenriched(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`FROM sessions\s+WHERE enrichment_done = FALSE AND total_messages >= \$1 .* ORDER BY last_message_at DESC`).
		WithArgs(5, 50).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))

	sessions, err := store.ListUnenriched(context.Background(), 5, 50)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func sampleEnrichment() *models.Enrichment {
	return &models.Enrichment{
		SessionKey:        "s1",
		Model:             "gpt-4o-mini",
		Needs:             models.StringList{"refund"},
		Topics:            models.StringList{"billing"},
		Mood:              "satisfied",
		SatisfactionLevel: 4,
		Summary:           "Customer asked for a refund",
		ResolutionStatus:  "resolved",
		RawOutput:         types.JSONText(`{"customer_mood":"satisfied"}`),
		AnalyzedAt:        time.Now().UTC(),
	}
}

func TestStore_SaveEnrichment(t *testing.T) {
	upd := models.SessionUpdate{Summary: "Customer asked for a refund", Category: "billing", SentimentScore: 0.7, UrgencyScore: 2}

	t.Run("creates row and marks session", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO analyses .* ON CONFLICT \(session_key\) DO NOTHING`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectExec("UPDATE sessions SET\\s+enrichment_done = TRUE").
			WithArgs("s1", upd.Summary, upd.Category, upd.SentimentScore, upd.UrgencyScore).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		e := sampleEnrichment()
		created, err := store.SaveEnrichment(context.Background(), e, upd, false)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(7), e.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing row is a no-op", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO analyses").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		created, err := store.SaveEnrichment(context.Background(), sampleEnrichment(), upd, false)

		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replace overwrites", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO analyses .* ON CONFLICT \(session_key\) DO UPDATE SET`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectExec("UPDATE sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		created, err := store.SaveEnrichment(context.Background(), sampleEnrichment(), upd, true)

		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("session update failure rolls back", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO analyses").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectExec("UPDATE sessions").WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		created, err := store.SaveEnrichment(context.Background(), sampleEnrichment(), upd, false)

		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateEmbedding(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("UPDATE analyses SET embedding = \\$2").
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analyses SET embedding = \\$2").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.UpdateEmbedding(context.Background(), "s1", []float32{0.1, 0.2, 0.3}))
	assert.ErrorIs(t, store.UpdateEmbedding(context.Background(), "missing", []float32{0.1, 0.2, 0.3}), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_NearestSessions_ExcludesQueryRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE a.session_key <> \$1 AND a.embedding IS NOT NULL\s+ORDER BY a.embedding <=> q.embedding\s+LIMIT \$2`).
		WithArgs("s1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"session_key", "summary", "mood", "topics", "resolution_status", "similarity"}).
			AddRow("s2", "refund request", "neutral", []byte(`["billing"]`), "resolved", 0.91).
			AddRow("s3", "login problem", "frustrated", []byte(`[]`), "pending", 0.42))
	mock.ExpectRollback()

	results, err := store.NearestSessions(context.Background(), "s1", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "s2", results[0].SessionKey)
	assert.Equal(t, models.StringList{"billing"}, results[0].Topics)
	assert.InDelta(t, 0.91, results[0].Similarity, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListEmbedded(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, session_key, summary, topics, embedding FROM analyses WHERE embedding IS NOT NULL ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_key", "summary", "topics", "embedding"}).
			AddRow(1, "s1", "a", []byte(`["x"]`), []byte("[1,0,0]")).
			AddRow(2, "s2", "b", []byte(`[]`), []byte("[0,1,0]")))
	mock.ExpectRollback()

	rows, err := store.ListEmbedded(context.Background())

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []float32{1, 0, 0}, rows[0].Vector)
	assert.Equal(t, []string{"x"}, rows[0].Topics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListSessionsInWindow_LeftJoinsEnrichment(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2025, 9, 4, 2, 0, 0, 0, time.UTC)
	start, end := now.Add(-24*time.Hour), now

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM sessions\s+WHERE first_message_at >= \$1 AND first_message_at < \$2`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(1, "s1", "", []byte(`[]`), "", "", "", "", "", "", "", true, now, 3, now, now, "2025-09-03", false, 5, true, "sum", "billing", 0.7, 2, now, now).
			AddRow(2, "s2", "", []byte(`[]`), "", "", "", "", "", "", "", false, nil, 1, now, now, "2025-09-03", true, nil, false, nil, nil, nil, nil, now, now))
	mock.ExpectRollback()
	mock.ExpectQuery(`FROM analyses WHERE session_key = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_key", "model", "needs", "pain_points", "topics", "mentioned_products",
			"technical_issues", "feature_requests", "mood", "satisfaction_level", "summary", "resolution_status",
			"raw_output", "embedding", "analyzed_at", "created_at", "updated_at",
		}).AddRow(9, "s1", "gpt-4o-mini", []byte(`["refund"]`), []byte(`[]`), []byte(`["billing"]`), []byte(`[]`),
			[]byte(`[]`), []byte(`[]`), "satisfied", 4, "sum", "resolved", []byte(`{}`), nil, now, now, now))

	rows, err := store.ListSessionsInWindow(context.Background(), start, end)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Enrichment)
	assert.Equal(t, "satisfied", rows[0].Enrichment.Mood)
	assert.Nil(t, rows[0].Enrichment.Embedding)
	assert.Nil(t, rows[1].Enrichment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_NearestCustomers(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM customer_profiles c\s+CROSS JOIN .* WHERE c.customer_key <> \$1`).
		WithArgs("u-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"customer_key", "primary_nickname", "total_sessions", "overall_satisfaction", "common_issues", "behavior_pattern", "similarity"}).
			AddRow("u-2", "Minh", 4, 3.5, []byte(`["refund"]`), "returning", 0.8))
	mock.ExpectRollback()

	results, err := store.NearestCustomers(context.Background(), "u-1", 3)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u-2", results[0].CustomerKey)
	require.NotNil(t, results[0].OverallSatisfaction)
	assert.Equal(t, 3.5, *results[0].OverallSatisfaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}
