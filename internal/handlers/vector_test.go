package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatlens/internal/database"
	"chatlens/internal/embeddings"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorService struct {
	err error

	gotKey       string
	gotLimit     int
	gotQuery     string
	gotThreshold float64
	gotBatch     int
}

func (f *fakeVectorService) SimilarConversations(_ context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error) {
	f.gotKey, f.gotLimit = sessionKey, limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.SimilarConversation{{SessionKey: "b", Similarity: 0.91}, {SessionKey: "c", Similarity: 0.8}}, nil
}

func (f *fakeVectorService) SimilarCustomers(_ context.Context, customerKey string, limit int) ([]models.SimilarCustomer, error) {
	f.gotKey, f.gotLimit = customerKey, limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.SimilarCustomer{{CustomerKey: "u-2", Similarity: 0.7}}, nil
}

func (f *fakeVectorService) SemanticSearch(_ context.Context, query string, limit int) ([]models.SimilarConversation, error) {
	f.gotQuery, f.gotLimit = query, limit
	if strings.TrimSpace(query) == "" {
		return nil, embeddings.ErrEmptyQuery
	}
	if f.err != nil {
		return nil, f.err
	}
	return []models.SimilarConversation{{SessionKey: "a", Similarity: 0.5}}, nil
}

func (f *fakeVectorService) Clusters(_ context.Context, minSimilarity float64) ([]models.ConversationPair, error) {
	f.gotThreshold = minSimilarity
	if f.err != nil {
		return nil, f.err
	}
	return []models.ConversationPair{{SessionKey1: "a", SessionKey2: "b", Similarity: 0.99}}, nil
}

func (f *fakeVectorService) Backfill(_ context.Context, batchSize int) (models.BackfillResult, error) {
	f.gotBatch = batchSize
	if f.err != nil {
		return models.BackfillResult{}, f.err
	}
	return models.BackfillResult{Processed: 3, Updated: 2, Failed: 1}, nil
}

type vectorBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
	Error   string          `json:"error"`
}

func serve(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	require.NoError(t, h(c))
	return rec
}

func decodeVector(t *testing.T, rec *httptest.ResponseRecorder) vectorBody {
	t.Helper()
	var body vectorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSimilarConversationsHandler(t *testing.T) {
	svc := &fakeVectorService{}
	rec := serve(t, SimilarConversationsHandler(svc, zerolog.Nop()), http.MethodGet,
		"/api/vector/similar-conversations/a?limit=3", "", "sessionKey", "a")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeVector(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "a", svc.gotKey)
	assert.Equal(t, 3, svc.gotLimit)

	var results []models.SimilarConversation
	require.NoError(t, json.Unmarshal(body.Data, &results))
	assert.Equal(t, "b", results[0].SessionKey)
}

func TestSimilarConversationsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unknown session", database.ErrNotFound, http.StatusNotFound, "Not found"},
		{"store failure", errors.New("pq: connection refused"), http.StatusInternalServerError, "Failed to find similar conversations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeVectorService{err: tt.err}
			rec := serve(t, SimilarConversationsHandler(svc, zerolog.Nop()), http.MethodGet,
				"/api/vector/similar-conversations/x", "", "sessionKey", "x")

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeVector(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, 5, svc.gotLimit, "default limit")
		})
	}
}

func TestSimilarCustomersHandler(t *testing.T) {
	svc := &fakeVectorService{}
	rec := serve(t, SimilarCustomersHandler(svc, zerolog.Nop()), http.MethodGet,
		"/api/vector/similar-customers/u-1?limit=abc", "", "customerKey", "u-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeVector(t, rec).Total)
	assert.Equal(t, "u-1", svc.gotKey)
	assert.Equal(t, 5, svc.gotLimit, "invalid limit falls back to the default")
}

func TestSemanticSearchHandler(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		svc := &fakeVectorService{}
		rec := serve(t, SemanticSearchHandler(svc, zerolog.Nop()), http.MethodPost,
			"/api/vector/semantic-search", `{"query":"refund not received","limit":7}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "refund not received", svc.gotQuery)
		assert.Equal(t, 7, svc.gotLimit)
	})

	t.Run("empty query", func(t *testing.T) {
		rec := serve(t, SemanticSearchHandler(&fakeVectorService{}, zerolog.Nop()), http.MethodPost,
			"/api/vector/semantic-search", `{"query":"  "}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Query is required", decodeVector(t, rec).Error)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := serve(t, SemanticSearchHandler(&fakeVectorService{}, zerolog.Nop()), http.MethodPost,
			"/api/vector/semantic-search", `{"query":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		rec := serve(t, SemanticSearchHandler(&fakeVectorService{err: errors.New("429")}, zerolog.Nop()), http.MethodPost,
			"/api/vector/semantic-search", `{"query":"late delivery"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to search conversations", decodeVector(t, rec).Error)
	})
}

func TestConversationClustersHandler(t *testing.T) {
	svc := &fakeVectorService{}
	rec := serve(t, ConversationClustersHandler(svc, zerolog.Nop()), http.MethodGet, "/api/vector/conversation-clusters", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.8, svc.gotThreshold)

	rec = serve(t, ConversationClustersHandler(svc, zerolog.Nop()), http.MethodGet, "/api/vector/conversation-clusters?minSimilarity=0.95", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.95, svc.gotThreshold)

	for _, bad := range []string{"abc", "1.5", "-2"} {
		rec = serve(t, ConversationClustersHandler(svc, zerolog.Nop()), http.MethodGet, "/api/vector/conversation-clusters?minSimilarity="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestUpdateEmbeddingsHandler(t *testing.T) {
	svc := &fakeVectorService{}
	rec := serve(t, UpdateEmbeddingsHandler(svc, zerolog.Nop()), http.MethodPost, "/api/vector/update-embeddings", `{"batchSize":7}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.gotBatch)

	var result models.BackfillResult
	require.NoError(t, json.Unmarshal(decodeVector(t, rec).Data, &result))
	assert.Equal(t, models.BackfillResult{Processed: 3, Updated: 2, Failed: 1}, result)

	rec = serve(t, UpdateEmbeddingsHandler(svc, zerolog.Nop()), http.MethodPost, "/api/vector/update-embeddings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.gotBatch, "service applies its own default")
}
