package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"chatlens/internal/analysis"
	"chatlens/internal/database"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionAnalyzer enriches one session on demand
type SessionAnalyzer interface {
	AnalyzeSession(ctx context.Context, sessionKey string, force bool) (*models.Enrichment, error)
}

// BatchRunner runs one batch of enrichments
type BatchRunner interface {
	Run(ctx context.Context) (models.BatchResult, error)
}

// AnalyzeSessionHandler enriches a session synchronously
// @Summary Analyze session
// @Description Runs enrichment for one session. With force=true an existing enrichment is replaced.
// @Tags analysis
// @Produce json
// @Param sessionKey path string true "Session key"
// @Param force query bool false "Re-run even if already enriched"
// @Success 200 {object} models.AnalysisResponse
// @Failure 404 {object} models.AnalysisResponse
// @Failure 409 {object} models.AnalysisResponse
// @Failure 500 {object} models.AnalysisResponse
// @Router /api/analysis/sessions/{sessionKey} [post]
func AnalyzeSessionHandler(analyzer SessionAnalyzer, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionKey := c.Param("sessionKey")
		force, _ := strconv.ParseBool(c.QueryParam("force"))

		enrichment, err := analyzer.AnalyzeSession(c.Request().Context(), sessionKey, force)
		if errors.Is(err, database.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.AnalysisResponse{Success: false, Error: "Session not found"})
		}
		if errors.Is(err, analysis.ErrInProgress) {
			return c.JSON(http.StatusConflict, models.AnalysisResponse{Success: false, Error: "Analysis already in progress"})
		}
		if err != nil {
			logger.Error().Err(err).Str("session_key", sessionKey).Msg("Explicit analysis failed")
			return c.JSON(http.StatusInternalServerError, models.AnalysisResponse{Success: false, Error: "Failed to analyze session"})
		}

		return c.JSON(http.StatusOK, models.AnalysisResponse{
			Success:    true,
			Enrichment: enrichment,
			Skipped:    enrichment == nil,
		})
	}
}

// BatchAnalysisHandler starts a batch run in the background. Only one run is
// accepted at a time.
// @Summary Start batch analysis
// @Tags analysis
// @Produce json
// @Success 202 {object} models.JobResponse
// @Failure 409 {object} models.JobResponse
// @Router /api/analysis/batch [post]
func BatchAnalysisHandler(runner BatchRunner, logger zerolog.Logger) echo.HandlerFunc {
	var running atomic.Bool

	return func(c echo.Context) error {
		if !running.CompareAndSwap(false, true) {
			return c.JSON(http.StatusConflict, models.JobResponse{Success: false, Error: "Batch analysis already running"})
		}

		go func() {
			defer running.Store(false)
			result, err := runner.Run(context.Background())
			if err != nil {
				logger.Error().Err(err).Msg("Background batch analysis failed")
				return
			}
			logger.Info().
				Int("attempted", result.Attempted).
				Int("succeeded", result.Succeeded).
				Int("failed", result.Failed).
				Msg("Background batch analysis finished")
		}()

		return c.JSON(http.StatusAccepted, models.JobResponse{Success: true, Message: "Batch analysis started"})
	}
}
