package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatlens/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getJSON runs h for a GET and decodes the JSON body into dest
func getJSON(t *testing.T, h echo.HandlerFunc, dest interface{}) int {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, h(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	return rec.Code
}

func TestHealthHandler(t *testing.T) {
	before := time.Now().UTC()

	var resp models.HealthResponse
	code := getJSON(t, HealthHandler("2.4.0"), &resp)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "2.4.0", resp.Version)
	assert.False(t, resp.Timestamp.Before(before.Add(-time.Second)))
}

func TestRootHandler(t *testing.T) {
	var resp map[string]string
	code := getJSON(t, RootHandler("2.4.0"), &resp)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"service": "chatlens API", "version": "2.4.0", "status": "running"}, resp)
}

func TestDBHealthHandler(t *testing.T) {
	refused := errors.New("dial tcp 10.0.3.7:5432: connect: connection refused")

	tests := []struct {
		name          string
		nilDB         bool
		expect        func(mock sqlmock.Sqlmock)
		wantCode      int
		wantConnected bool
		wantError     string
		wantLogged    string
	}{
		{
			name: "read-only ping succeeds",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
				mock.ExpectRollback()
			},
			wantCode:      http.StatusOK,
			wantConnected: true,
		},
		{
			name:      "no pool configured",
			nilDB:     true,
			wantCode:  http.StatusServiceUnavailable,
			wantError: "Database connection not initialized",
		},
		{
			name: "cannot begin transaction",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(refused)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantError:  "Database read-only query failed",
			wantLogged: "connection refused",
		},
		{
			name: "query fails",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1").WillReturnError(errors.New(`pq: relation "x" does not exist`))
				mock.ExpectRollback()
			},
			wantCode:   http.StatusServiceUnavailable,
			wantError:  "Database read-only query failed",
			wantLogged: "does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var db *sqlx.DB
			var mock sqlmock.Sqlmock
			if !tt.nilDB {
				mockDB, m, err := sqlmock.New()
				require.NoError(t, err)
				defer mockDB.Close()
				db, mock = sqlx.NewDb(mockDB, "sqlmock"), m
				tt.expect(mock)
			}

			var logs bytes.Buffer
			var resp models.DBHealthResponse
			code := getJSON(t, DBHealthHandler(db, zerolog.New(&logs)), &resp)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantConnected, resp.Connected)
			assert.Equal(t, tt.wantError, resp.Error)
			if tt.wantConnected {
				assert.Equal(t, "healthy", resp.Status)
			} else {
				assert.Equal(t, "unhealthy", resp.Status)
			}

			// the cause goes to the log, never to the client
			if tt.wantLogged != "" {
				assert.Contains(t, logs.String(), tt.wantLogged)
				assert.NotContains(t, resp.Error, tt.wantLogged)
			}
			if mock != nil {
				assert.NoError(t, mock.ExpectationsWereMet())
			}
		})
	}
}

type fakeBroker bool

func (b fakeBroker) Ready() bool { return bool(b) }

func TestQueueHealthHandler(t *testing.T) {
	tests := []struct {
		name          string
		broker        BrokerStatus
		wantCode      int
		wantStatus    string
		wantConnected bool
	}{
		{"no broker client", nil, http.StatusServiceUnavailable, "unhealthy", false},
		{"reconnecting", fakeBroker(false), http.StatusServiceUnavailable, "unhealthy", false},
		{"connected", fakeBroker(true), http.StatusOK, "healthy", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp models.QueueHealthResponse
			code := getJSON(t, QueueHealthHandler(tt.broker), &resp)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantConnected, resp.Connected)
		})
	}
}
