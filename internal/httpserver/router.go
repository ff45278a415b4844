package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wavecrate/presetstore/internal/auth"
	"github.com/wavecrate/presetstore/internal/cart"
	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/checkout"
	"github.com/wavecrate/presetstore/internal/entitlement"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/orders"
	"github.com/wavecrate/presetstore/internal/webhook"
)

type Deps struct {
	Auth      *auth.HTTP
	Catalog   *catalog.HTTP
	Cart      *cart.HTTP
	Checkout  *checkout.HTTP
	Webhook   *webhook.HTTP
	Downloads *entitlement.HTTP
	Orders    *orders.HTTP
	AuthMW    *mwauth.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// The processor posts raw signed payloads here; no auth middleware.
	e.POST("/webhooks/payments", d.Webhook.Receive)

	v1 := e.Group("/api/v1")

	v1.POST("/auth/register", d.Auth.Register)
	v1.POST("/auth/login", d.Auth.Login)

	v1.GET("/items", d.Catalog.ListItems)
	v1.GET("/items/:kind/:id", d.Catalog.GetItem)

	authed := v1.Group("", d.AuthMW.RequireAuth)

	authed.POST("/items/:kind", d.Catalog.CreateItem)
	authed.PATCH("/items/:kind/:id/price", d.Catalog.PatchPrice)

	authed.GET("/cart/:kind", d.Cart.ListItems)
	authed.POST("/cart/:kind", d.Cart.AddItem)
	authed.PUT("/cart/:kind", d.Cart.MoveItem)
	authed.DELETE("/cart/:kind/:itemId", d.Cart.DeleteItem)

	authed.POST("/checkout", d.Checkout.CreateSession)

	authed.GET("/downloads/:kind/:id", d.Downloads.Download)
	authed.GET("/orders", d.Orders.ListOrders)
}
