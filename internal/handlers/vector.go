package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"chatlens/internal/database"
	"chatlens/internal/embeddings"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const defaultClusterSimilarity = 0.8

// VectorService is the similarity engine behind the vector endpoints
type VectorService interface {
	SimilarConversations(ctx context.Context, sessionKey string, limit int) ([]models.SimilarConversation, error)
	SimilarCustomers(ctx context.Context, customerKey string, limit int) ([]models.SimilarCustomer, error)
	SemanticSearch(ctx context.Context, query string, limit int) ([]models.SimilarConversation, error)
	Clusters(ctx context.Context, minSimilarity float64) ([]models.ConversationPair, error)
	Backfill(ctx context.Context, batchSize int) (models.BackfillResult, error)
}

// queryInt reads an integer query parameter, falling back to def when absent or invalid
func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}

func vectorError(c echo.Context, logger zerolog.Logger, err error, msg string) error {
	if errors.Is(err, database.ErrNotFound) {
		return c.JSON(http.StatusNotFound, models.VectorResponse{Success: false, Error: "Not found"})
	}
	logger.Error().Err(err).Msg(msg)
	return c.JSON(http.StatusInternalServerError, models.VectorResponse{Success: false, Error: msg})
}

// SimilarConversationsHandler finds conversations similar to a session
// @Summary Similar conversations
// @Description Nearest conversations to the given session by summary embedding
// @Tags vector
// @Produce json
// @Param sessionKey path string true "Session key"
// @Param limit query int false "Maximum results" default(5)
// @Success 200 {object} models.VectorResponse
// @Failure 404 {object} models.VectorResponse
// @Failure 500 {object} models.VectorResponse
// @Router /api/vector/similar-conversations/{sessionKey} [get]
func SimilarConversationsHandler(svc VectorService, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionKey := c.Param("sessionKey")
		results, err := svc.SimilarConversations(c.Request().Context(), sessionKey, queryInt(c, "limit", 5))
		if err != nil {
			return vectorError(c, logger.With().Str("session_key", sessionKey).Logger(), err, "Failed to find similar conversations")
		}
		return c.JSON(http.StatusOK, models.VectorResponse{Success: true, Data: results, Total: len(results)})
	}
}

// SimilarCustomersHandler finds customers with similar profiles
// @Summary Similar customers
// @Tags vector
// @Produce json
// @Param customerKey path string true "Customer key"
// @Param limit query int false "Maximum results" default(5)
// @Success 200 {object} models.VectorResponse
// @Failure 500 {object} models.VectorResponse
// @Router /api/vector/similar-customers/{customerKey} [get]
func SimilarCustomersHandler(svc VectorService, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		customerKey := c.Param("customerKey")
		results, err := svc.SimilarCustomers(c.Request().Context(), customerKey, queryInt(c, "limit", 5))
		if err != nil {
			return vectorError(c, logger.With().Str("customer_key", customerKey).Logger(), err, "Failed to find similar customers")
		}
		return c.JSON(http.StatusOK, models.VectorResponse{Success: true, Data: results, Total: len(results)})
	}
}

// SemanticSearchHandler ranks conversations against a free-text query
// @Summary Semantic search
// @Tags vector
// @Accept json
// @Produce json
// @Param request body models.SemanticSearchRequest true "Search query"
// @Success 200 {object} models.VectorResponse
// @Failure 400 {object} models.VectorResponse
// @Failure 500 {object} models.VectorResponse
// @Router /api/vector/semantic-search [post]
func SemanticSearchHandler(svc VectorService, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SemanticSearchRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.VectorResponse{Success: false, Error: "Invalid request body"})
		}

		results, err := svc.SemanticSearch(c.Request().Context(), req.Query, req.Limit)
		if errors.Is(err, embeddings.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, models.VectorResponse{Success: false, Error: "Query is required"})
		}
		if err != nil {
			return vectorError(c, logger, err, "Failed to search conversations")
		}
		return c.JSON(http.StatusOK, models.VectorResponse{Success: true, Data: results, Total: len(results)})
	}
}

// ConversationClustersHandler lists pairs of near-duplicate conversations
// @Summary Conversation clusters
// @Tags vector
// @Produce json
// @Param minSimilarity query number false "Similarity threshold" default(0.8)
// @Success 200 {object} models.VectorResponse
// @Failure 400 {object} models.VectorResponse
// @Failure 500 {object} models.VectorResponse
// @Router /api/vector/conversation-clusters [get]
func ConversationClustersHandler(svc VectorService, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		threshold := defaultClusterSimilarity
		if raw := c.QueryParam("minSimilarity"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < -1 || v > 1 {
				return c.JSON(http.StatusBadRequest, models.VectorResponse{Success: false, Error: "minSimilarity must be between -1 and 1"})
			}
			threshold = v
		}

		pairs, err := svc.Clusters(c.Request().Context(), threshold)
		if err != nil {
			return vectorError(c, logger, err, "Failed to compute clusters")
		}
		return c.JSON(http.StatusOK, models.VectorResponse{Success: true, Data: pairs, Total: len(pairs)})
	}
}

// UpdateEmbeddingsHandler embeds one batch of enrichments still missing a vector
// @Summary Backfill embeddings
// @Tags vector
// @Accept json
// @Produce json
// @Param request body models.BackfillRequest false "Batch size"
// @Success 200 {object} models.VectorResponse
// @Failure 500 {object} models.VectorResponse
// @Router /api/vector/update-embeddings [post]
func UpdateEmbeddingsHandler(svc VectorService, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.BackfillRequest
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return c.JSON(http.StatusBadRequest, models.VectorResponse{Success: false, Error: "Invalid request body"})
			}
		}

		result, err := svc.Backfill(c.Request().Context(), req.BatchSize)
		if err != nil {
			return vectorError(c, logger, err, "Failed to update embeddings")
		}
		return c.JSON(http.StatusOK, models.VectorResponse{Success: true, Data: result, Total: result.Processed})
	}
}
