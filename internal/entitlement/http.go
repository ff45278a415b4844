package entitlement

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/logging"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/models"
)

type HTTP struct {
	Svc *Service
	// DownloadBaseURL fronts the file storage; only the key is appended.
	DownloadBaseURL string
}

// Download gates the file URL behind the entitlement check. A denied request
// gets a bare 403 with no URL in the body.
func (h *HTTP) Download(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "download")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	kind, err := models.ParseItemKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item kind"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}

	item, err := h.Svc.Authorize(ctx, userID, catalog.ItemRef{Kind: kind, ID: id})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, ErrForbidden):
			l.Info("download denied", "item_kind", kind, "item_id", id)
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		default:
			l.Error("download_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	key := item.FileKey
	if key == "" {
		key = fmt.Sprintf("%s/%s", item.Kind, item.ID)
	}

	l.Info("download granted", "item_kind", kind, "item_id", id)
	return c.JSON(http.StatusOK, echo.Map{"url": fmt.Sprintf("%s/%s", h.DownloadBaseURL, key)})
}
