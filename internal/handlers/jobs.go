package handlers

import (
	"context"
	"net/http"
	"time"

	"chatlens/internal/k8s"
	"chatlens/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// JobLauncher starts maintenance jobs on the cluster
type JobLauncher interface {
	CreateMaintenanceJob(ctx context.Context, kind string) (string, error)
	GetJobStatus(ctx context.Context, jobName string) (*models.JobStatus, error)
}

// TriggerJobHandler launches a Kubernetes job for a maintenance run
// @Summary Trigger maintenance job
// @Description Launches a one-shot batch-analysis or update-embeddings job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body models.JobRequest true "Job kind"
// @Success 200 {object} models.JobResponse
// @Failure 400 {object} models.JobResponse
// @Failure 500 {object} models.JobResponse
// @Failure 503 {object} models.JobResponse
// @Router /api/jobs [post]
func TriggerJobHandler(launcher JobLauncher, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if launcher == nil {
			return c.JSON(http.StatusServiceUnavailable, models.JobResponse{Success: false, Error: "Kubernetes is not available"})
		}

		var req models.JobRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.JobResponse{Success: false, Error: "Invalid request body"})
		}
		if !k8s.ValidKind(req.Kind) {
			return c.JSON(http.StatusBadRequest, models.JobResponse{Success: false, Error: "Unknown job kind"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
		defer cancel()

		jobName, err := launcher.CreateMaintenanceJob(ctx, req.Kind)
		if err != nil {
			logger.Error().Err(err).Str("kind", req.Kind).Msg("Failed to create job")
			return c.JSON(http.StatusInternalServerError, models.JobResponse{Success: false, Error: "Failed to create job"})
		}

		logger.Info().Str("job_name", jobName).Msg("Maintenance job created")
		return c.JSON(http.StatusOK, models.JobResponse{
			Success: true,
			JobName: jobName,
			Message: "Job started",
		})
	}
}

// JobStatusHandler gets the status of a maintenance job
// @Summary Get job status
// @Tags jobs
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} models.JobResponse
// @Failure 404 {object} models.JobResponse
// @Failure 500 {object} models.JobResponse
// @Router /api/jobs/{name} [get]
func JobStatusHandler(launcher JobLauncher, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if launcher == nil {
			return c.JSON(http.StatusServiceUnavailable, models.JobResponse{Success: false, Error: "Kubernetes is not available"})
		}

		jobName := c.Param("name")
		ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()

		status, err := launcher.GetJobStatus(ctx, jobName)
		if apierrors.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, models.JobResponse{Success: false, Error: "Job not found"})
		}
		if err != nil {
			logger.Error().Err(err).Str("job_name", jobName).Msg("Failed to get job status")
			return c.JSON(http.StatusInternalServerError, models.JobResponse{Success: false, Error: "Failed to get job status"})
		}

		return c.JSON(http.StatusOK, models.JobResponse{Success: true, JobName: jobName, Status: status})
	}
}
