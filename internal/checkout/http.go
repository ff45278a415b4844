package checkout

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/logging"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
)

type HTTP struct {
	Svc *Service
}

func (h *HTTP) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.create")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	url, err := h.Svc.CreateSession(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "EmptyCart"})
		case errors.Is(err, stripe.ErrUpstreamUnavailable):
			l.Error("checkout_upstream_error", "status", 502, "error", err)
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
		default:
			l.Error("checkout_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	l.Info("checkout session created", "user_id", userID)
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}
