package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/logging"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
)

type HTTP struct {
	Svc *Service
}

// Receive acknowledges every delivery the processor should stop retrying:
// 200 for handled, replayed, filtered, and corrupt events, 400 only for bad
// signatures, 500 for transient failures the processor should redeliver.
func (h *HTTP) Receive(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "webhook.payments")

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	err = h.Svc.HandleEvent(ctx, payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	case errors.Is(err, stripe.ErrInvalidSignature):
		l.Warn("webhook_invalid_signature", "status", 400)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	case errors.Is(err, ErrMetadataCorrupt):
		// Corrupt metadata never fixes itself; ack the event so the processor
		// stops redelivering and page the operator instead.
		l.Error("webhook_metadata_corrupt", "error", err)
		if pubErr := h.Svc.Publisher.Publish(ctx, events.TopicOperatorAlerts, "webhook", map[string]any{
			"type":  "webhook_metadata_corrupt",
			"error": err.Error(),
		}); pubErr != nil {
			l.Error("operator_alert_error", "error", pubErr)
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	default:
		l.Error("webhook_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
