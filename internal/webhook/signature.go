// Package webhook verifies and normalizes Crisp webhook deliveries.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	SignatureHeader = "X-Crisp-Signature"
	TimestampHeader = "X-Crisp-Request-Timestamp"
)

var (
	// ErrInvalidSignature is returned for a missing or wrong signature
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrStaleTimestamp is returned when the request time is outside the skew window
	ErrStaleTimestamp = errors.New("timestamp too old")
)

// Verifier checks the HMAC-SHA256 signature Crisp puts on every delivery
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier. An empty secret rejects every request.
func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		maxSkew: maxSkew,
		now:     time.Now,
	}
}

// Sign computes the hex signature of body sent at timestamp (milliseconds)
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("["))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(";"))
	mac.Write(body)
	mac.Write([]byte("]"))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature over the raw body, then the request age
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if len(v.secret) == 0 || timestamp == "" || signature == "" {
		return ErrInvalidSignature
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(Sign(v.secret, timestamp, body))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}

	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := v.now().Sub(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrStaleTimestamp
	}
	return nil
}

// Middleware rejects unsigned or stale deliveries before they reach the handler.
// The body is buffered and restored for the next handler.
func (v *Verifier) Middleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			err = v.Verify(req.Header.Get(TimestampHeader), req.Header.Get(SignatureHeader), body)
			switch {
			case errors.Is(err, ErrInvalidSignature):
				logger.Warn().Str("remote_ip", c.RealIP()).Msg("Rejected webhook with invalid signature")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
			case errors.Is(err, ErrStaleTimestamp):
				logger.Warn().Str("remote_ip", c.RealIP()).Msg("Rejected stale webhook")
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Timestamp too old"})
			}

			return next(c)
		}
	}
}
