package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/logging"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/models"
)

type HTTP struct {
	Svc *Service
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return (page - 1) * size, size
}

func itemRefFromPath(c echo.Context) (ItemRef, error) {
	kind, err := models.ParseItemKind(c.Param("kind"))
	if err != nil {
		return ItemRef{}, echo.NewHTTPError(http.StatusBadRequest, "invalid item kind")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ItemRef{}, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return ItemRef{Kind: kind, ID: id}, nil
}

func (h *HTTP) CreateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.create")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	kind, err := models.ParseItemKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item kind"})
	}

	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	item, err := h.Svc.CreateItem(ctx, userID, kind, CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		l.Error("create_item_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	l.Info("item created", "item_kind", item.Kind, "item_id", item.ID)
	return c.JSON(http.StatusCreated, item)
}

func (h *HTTP) GetItem(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := itemRefFromPath(c)
	if err != nil {
		return err
	}

	item, err := h.Svc.GetItem(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		logging.FromContext(ctx).Error("get_item_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, item)
}

func (h *HTTP) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 20)
	offset, limit := paginate(page, size)

	presets, presetTotal, err := h.Svc.Repo.ListPresets(ctx, offset, limit)
	if err != nil {
		l.Error("list_items_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	packs, packTotal, err := h.Svc.Repo.ListPacks(ctx, offset, limit)
	if err != nil {
		l.Error("list_items_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"presets": presets,
		"packs":   packs,
		"meta": echo.Map{
			"page":  page,
			"size":  limit,
			"total": presetTotal + packTotal,
		},
	})
}

// PatchPrice updates the canonical price and fans it out to referencing cart
// lines. Responds with how many lines picked up a new ledger entry.
func (h *HTTP) PatchPrice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.patch_price")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	ref, err := itemRefFromPath(c)
	if err != nil {
		return err
	}

	var req struct {
		Price float64 `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	item, affected, err := h.Svc.UpdatePrice(ctx, userID, ref, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case errors.Is(err, ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not the item owner"})
		default:
			l.Error("patch_price_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	l.Info("price updated", "item_id", item.ID, "price", item.Price, "affected_cart_lines", affected)
	return c.JSON(http.StatusOK, echo.Map{
		"item":              item,
		"affectedCartLines": affected,
	})
}
