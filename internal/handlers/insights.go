package handlers

import (
	"context"
	"errors"
	"net/http"

	"chatlens/internal/insights"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// InsightsGenerator builds the report for a work day
type InsightsGenerator interface {
	Generate(ctx context.Context, date string) (*models.DailyInsights, error)
}

// DailyInsightsHandler returns the insights report for a date, today when the path has none
// @Summary Daily insights
// @Description Aggregated metrics, customer insights and recommendations for the work day ending on date
// @Tags insights
// @Produce json
// @Param date path string false "Date (YYYY-MM-DD)"
// @Success 200 {object} models.InsightsResponse
// @Failure 400 {object} models.InsightsResponse
// @Failure 500 {object} models.InsightsResponse
// @Router /api/insights/daily/{date} [get]
func DailyInsightsHandler(gen InsightsGenerator, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		date := c.Param("date")

		report, err := gen.Generate(c.Request().Context(), date)
		if errors.Is(err, insights.ErrInvalidDate) {
			return c.JSON(http.StatusBadRequest, models.InsightsResponse{
				Success: false,
				Error:   "Invalid date format, expected YYYY-MM-DD",
			})
		}
		if err != nil {
			logger.Error().Err(err).Str("date", date).Msg("Failed to generate insights")
			return c.JSON(http.StatusInternalServerError, models.InsightsResponse{
				Success: false,
				Error:   "Failed to generate insights",
			})
		}

		return c.JSON(http.StatusOK, models.InsightsResponse{Success: true, Data: report})
	}
}
