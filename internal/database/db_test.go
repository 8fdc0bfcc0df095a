package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestNew_EmptyDatabaseURL(t *testing.T) {
	db, err := New("")
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "DATABASE_URL environment variable not set")
}

func TestExecuteReadOnlyQuery(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError string
		wantRows  int
	}{
		{
			name: "successful query",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT session_key FROM sessions").
					WillReturnRows(sqlmock.NewRows([]string{"session_key"}).AddRow("s1").AddRow("s2"))
				mock.ExpectRollback()
			},
			wantRows: 2,
		},
		{
			name: "transaction begin failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
			},
			wantError: "failed to begin read-only transaction",
		},
		{
			name: "query execution failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT session_key FROM sessions").WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			wantError: "failed to execute read-only query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setupMock(mock)

			var keys []string
			err := ExecuteReadOnlyQuery(context.Background(), db, &keys, "SELECT session_key FROM sessions")

			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
			} else {
				require.NoError(t, err)
				assert.Len(t, keys, tt.wantRows)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecuteReadOnlyQuerySingle_NoRows(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}))
	mock.ExpectRollback()

	var count int
	err := ExecuteReadOnlyQuerySingle(context.Background(), db, &count, "SELECT COUNT(*) FROM sessions")

	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteReadOnlyPing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	assert.NoError(t, ExecuteReadOnlyPing(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteReadOnlyQuery_ContextCancellation(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM sessions").WillDelayFor(2 * time.Second)
	mock.ExpectRollback()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var keys []string
	err := ExecuteReadOnlyQuery(ctx, db, &keys, "SELECT * FROM sessions")
	assert.Error(t, err)
}

func TestWriteClient_WithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		wc := NewWriteClientFromDB(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE sessions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := wc.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			_, err := tx.Exec("UPDATE sessions SET enrichment_done = TRUE")
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		wc := NewWriteClientFromDB(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE sessions").WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := wc.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			_, err := tx.Exec("UPDATE sessions SET enrichment_done = TRUE")
			return err
		})
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
