package handlers

import (
	"context"
	"errors"
	"net/http"

	"chatlens/internal/database"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionReader reads session aggregates and their enrichment
type SessionReader interface {
	ListSessions(ctx context.Context, limit, offset int) ([]models.SessionAggregate, int, error)
	GetSession(ctx context.Context, sessionKey string) (*models.SessionAggregate, error)
	GetEnrichment(ctx context.Context, sessionKey string) (*models.Enrichment, error)
}

// ListSessionsHandler handles listing session aggregates
// @Summary List sessions
// @Description Get a paginated list of sessions, most recently active first
// @Tags sessions
// @Produce json
// @Param limit query int false "Number of sessions per page" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.SessionListResponse
// @Failure 500 {object} models.SessionListResponse
// @Router /api/sessions [get]
func ListSessionsHandler(reader SessionReader, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := queryInt(c, "limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := queryInt(c, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		sessions, total, err := reader.ListSessions(c.Request().Context(), limit, offset)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list sessions")
			return c.JSON(http.StatusInternalServerError, models.SessionListResponse{
				Success: false,
				Error:   "Failed to list sessions",
			})
		}

		return c.JSON(http.StatusOK, models.SessionListResponse{
			Success:  true,
			Sessions: sessions,
			Total:    total,
			Limit:    limit,
			Offset:   offset,
		})
	}
}

// GetSessionHandler returns one session with its enrichment
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param sessionKey path string true "Session key"
// @Success 200 {object} models.SessionDetailResponse
// @Failure 404 {object} models.SessionDetailResponse
// @Failure 500 {object} models.SessionDetailResponse
// @Router /api/sessions/{sessionKey} [get]
func GetSessionHandler(reader SessionReader, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		sessionKey := c.Param("sessionKey")

		sess, err := reader.GetSession(ctx, sessionKey)
		if errors.Is(err, database.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.SessionDetailResponse{Success: false, Error: "Session not found"})
		}
		if err != nil {
			logger.Error().Err(err).Str("session_key", sessionKey).Msg("Failed to load session")
			return c.JSON(http.StatusInternalServerError, models.SessionDetailResponse{Success: false, Error: "Failed to load session"})
		}

		enrichment, err := reader.GetEnrichment(ctx, sessionKey)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			logger.Error().Err(err).Str("session_key", sessionKey).Msg("Failed to load enrichment")
			return c.JSON(http.StatusInternalServerError, models.SessionDetailResponse{Success: false, Error: "Failed to load session"})
		}

		return c.JSON(http.StatusOK, models.SessionDetailResponse{
			Success: true,
			Data:    &models.SessionWithEnrichment{Session: *sess, Enrichment: enrichment},
		})
	}
}
