package server

import (
	"net/http"

	"settlement/internal/config"
	"settlement/internal/handler"
	"settlement/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Orders   *handler.OrderHandler
	Cart     *handler.CartHandler
	Products *handler.ProductHandler
	// nilなら常にok
	Ping func(c echo.Context) error
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		if h.Ping != nil {
			if err := h.Ping(c); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := middleware.AuthJWT(cfg)
	h.Products.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, auth)
	h.Orders.RegisterRoutes(e, auth)
}
