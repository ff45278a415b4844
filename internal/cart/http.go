package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/logging"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/models"
)

type HTTP struct {
	Svc       *Service
	Publisher events.Publisher
}

func (h *HTTP) publish(ctx context.Context, key string, event map[string]any) {
	if err := h.Publisher.Publish(ctx, events.TopicCart, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_error", "topic", events.TopicCart, "error", err)
	}
}

func listKindFromPath(c echo.Context) (models.ListKind, error) {
	kind, err := models.ParseListKind(c.Param("kind"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid list kind")
	}
	return kind, nil
}

func (h *HTTP) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.list")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	kind, err := listKindFromPath(c)
	if err != nil {
		return err
	}

	views, err := h.Svc.ListItems(ctx, userID, kind)
	if err != nil {
		l.Error("list_cart_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, views)
}

func (h *HTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	kind, err := listKindFromPath(c)
	if err != nil {
		return err
	}

	var req struct {
		ItemID   uuid.UUID `json:"itemId"`
		ItemType string    `json:"itemType"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	itemKind, err := models.ParseItemKind(req.ItemType)
	if err != nil || req.ItemID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "itemId and itemType required"})
	}

	view, err := h.Svc.AddItem(ctx, userID, kind, catalog.ItemRef{Kind: itemKind, ID: req.ItemID})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "item already in list"})
		default:
			l.Error("add_to_cart_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	h.publish(ctx, userID.String(), map[string]any{
		"type":      "cart_item_added",
		"user_id":   userID,
		"list_kind": kind,
		"item_kind": itemKind,
		"item_id":   req.ItemID,
	})
	l.Info("item added to list", "list_kind", kind, "item_id", req.ItemID)
	return c.JSON(http.StatusCreated, view)
}

func (h *HTTP) MoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.move")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	if _, err := listKindFromPath(c); err != nil {
		return err
	}

	var req struct {
		ItemID   uuid.UUID `json:"itemId"`
		ItemType string    `json:"itemType"`
		From     string    `json:"from"`
		To       string    `json:"to"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	itemKind, err := models.ParseItemKind(req.ItemType)
	if err != nil || req.ItemID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "itemId and itemType required"})
	}
	from, err := models.ParseListKind(req.From)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid source list"})
	}
	to, err := models.ParseListKind(req.To)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid destination list"})
	}

	line, err := h.Svc.MoveItem(ctx, userID, catalog.ItemRef{Kind: itemKind, ID: req.ItemID}, from, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not in source list"})
		case errors.Is(err, ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "item already in destination list"})
		default:
			l.Error("move_item_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	h.publish(ctx, userID.String(), map[string]any{
		"type":    "cart_item_moved",
		"user_id": userID,
		"item_id": req.ItemID,
		"from":    from,
		"to":      to,
	})
	return c.JSON(http.StatusOK, line)
}

func (h *HTTP) DeleteItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	kind, err := listKindFromPath(c)
	if err != nil {
		return err
	}
	lineID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}

	if err := h.Svc.DeleteItem(ctx, userID, kind, lineID); err != nil {
		l.Error("delete_item_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	h.publish(ctx, userID.String(), map[string]any{
		"type":      "cart_item_deleted",
		"user_id":   userID,
		"list_kind": kind,
		"line_id":   lineID,
	})
	return c.JSON(http.StatusOK, echo.Map{"deleted": lineID})
}
