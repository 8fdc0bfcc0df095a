package handlers

import (
	"context"
	"net/http"

	"chatlens/internal/analytics"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AnalyticsReader summarises pipeline counters
type AnalyticsReader interface {
	GetSummary(ctx context.Context, period string) (*models.AnalyticsSummary, error)
}

// AnalyticsHandler returns analytics summary for a given period
// @Summary Get analytics summary
// @Description Get pipeline counters for a specified time period (today, yesterday, last_7_days, last_30_days)
// @Tags analytics
// @Accept json
// @Produce json
// @Param period query string false "Time period (today, yesterday, last_7_days, last_30_days)" default(yesterday)
// @Success 200 {object} models.AnalyticsResponse
// @Failure 500 {object} models.AnalyticsResponse
// @Router /api/analytics [get]
func AnalyticsHandler(reader AnalyticsReader, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		period := c.QueryParam("period")
		if period == "" {
			period = analytics.PeriodYesterday
		}

		summary, err := reader.GetSummary(c.Request().Context(), period)
		if err != nil {
			logger.Error().Err(err).Str("period", period).Msg("Failed to get analytics summary")
			return c.JSON(http.StatusInternalServerError, models.AnalyticsResponse{
				Success: false,
				Error:   "Failed to get analytics summary",
			})
		}

		return c.JSON(http.StatusOK, models.AnalyticsResponse{
			Success: true,
			Summary: summary,
		})
	}
}
