package handlers

import (
	"context"
	"net/http"
	"time"

	"chatlens/internal/database"
	"chatlens/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// BrokerStatus reports whether the broker connection is usable
type BrokerStatus interface {
	Ready() bool
}

// HealthHandler handles basic health check requests
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
		}

		return c.JSON(http.StatusOK, response)
	}
}

// DBHealthHandler handles database health check requests
// @Summary Database readiness check
// @Tags health
// @Produce json
// @Success 200 {object} models.DBHealthResponse
// @Failure 503 {object} models.DBHealthResponse
// @Router /healthz/db [get]
func DBHealthHandler(db *sqlx.DB, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.DBHealthResponse{
			Status:    "unknown",
			Timestamp: time.Now().UTC(),
			Connected: false,
			Latency:   0,
		}

		if db == nil {
			response.Status = "unhealthy"
			response.Error = "Database connection not initialized"
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := database.ExecuteReadOnlyPing(ctx, db)
		response.Latency = time.Since(start)

		if err != nil {
			logger.Error().Err(err).Dur("latency", response.Latency).Msg("Database health check failed")
			response.Status = "unhealthy"
			response.Error = "Database read-only query failed"
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		response.Status = "healthy"
		response.Connected = true

		return c.JSON(http.StatusOK, response)
	}
}

// QueueHealthHandler reports the broker connection state
// @Summary Broker readiness check
// @Tags health
// @Produce json
// @Success 200 {object} models.QueueHealthResponse
// @Failure 503 {object} models.QueueHealthResponse
// @Router /healthz/queue [get]
func QueueHealthHandler(broker BrokerStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.QueueHealthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
		}
		if broker == nil || !broker.Ready() {
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		response.Status = "healthy"
		response.Connected = true
		return c.JSON(http.StatusOK, response)
	}
}

// RootHandler handles requests to the root endpoint
func RootHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "chatlens API",
			"version": version,
			"status":  "running",
		})
	}
}
