package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"chatlens/internal/models"
	"chatlens/internal/queue"
	"chatlens/internal/webhook"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Publisher hands a queue message to the broker
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// CrispWebhookHandler accepts a signed Crisp delivery and enqueues it.
// The signature is checked by webhook.Verifier middleware before this runs.
// @Summary Receive Crisp webhook
// @Description Accepts message and session state events from Crisp and publishes them for aggregation
// @Tags webhook
// @Accept json
// @Produce json
// @Param X-Crisp-Signature header string true "HMAC-SHA256 signature"
// @Param X-Crisp-Request-Timestamp header string true "Request timestamp in milliseconds"
// @Success 200 {object} models.WebhookResponse
// @Failure 400 {object} models.WebhookResponse
// @Failure 401 {object} models.WebhookResponse
// @Failure 503 {object} models.WebhookResponse
// @Router /webhook/crisp [post]
func CrispWebhookHandler(publisher Publisher, logger zerolog.Logger) echo.HandlerFunc {
	logger = logger.With().Str("component", "webhook").Logger()

	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: "Failed to read body"})
		}

		var payload webhook.Payload
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: "Invalid JSON payload"})
		}

		if !webhook.Accepted(payload.Event) {
			logger.Debug().Str("event", payload.Event).Msg("Ignoring webhook event")
			return c.JSON(http.StatusOK, models.WebhookResponse{Status: "ignored"})
		}

		ev, err := webhook.Normalize(payload, time.Now())
		switch {
		case errors.Is(err, webhook.ErrMissingSession):
			return c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: "Missing session_id"})
		case errors.Is(err, webhook.ErrUnsupported):
			logger.Debug().Err(err).Str("event", payload.Event).Msg("Ignoring unsupported content")
			return c.JSON(http.StatusOK, models.WebhookResponse{Status: "ignored"})
		case err != nil:
			return c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: "Invalid event data"})
		}

		msg, err := json.Marshal(models.Envelope{SessionKey: ev.SessionKey, RawEvent: ev})
		if err != nil {
			logger.Error().Err(err).Str("session_key", ev.SessionKey).Msg("Failed to encode envelope")
			return c.JSON(http.StatusInternalServerError, models.WebhookResponse{Error: "Failed to process webhook"})
		}

		if err := publisher.Publish(c.Request().Context(), msg); err != nil {
			if errors.Is(err, queue.ErrNotReady) {
				logger.Warn().Str("session_key", ev.SessionKey).Msg("Broker not ready, rejecting webhook")
				return c.JSON(http.StatusServiceUnavailable, models.WebhookResponse{Error: "Queue unavailable"})
			}
			logger.Error().Err(err).Str("session_key", ev.SessionKey).Msg("Failed to publish webhook")
			return c.JSON(http.StatusInternalServerError, models.WebhookResponse{Error: "Failed to process webhook"})
		}

		logger.Debug().Str("session_key", ev.SessionKey).Str("event", payload.Event).Msg("Webhook queued")
		return c.JSON(http.StatusOK, models.WebhookResponse{Status: "received"})
	}
}
