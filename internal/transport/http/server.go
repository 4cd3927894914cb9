// Package http provides the HTTP server of the copilot backend.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lawrencecchen/autobuild/internal/hub"
	"github.com/lawrencecchen/autobuild/internal/service"
	v1 "github.com/lawrencecchen/autobuild/internal/transport/http/v1"
	"github.com/lawrencecchen/autobuild/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the JSON API and the
// WebSocket endpoint streaming UI updates.
func NewServer(svc *service.Service, h *hub.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	wsServer := ws.NewServer(h, svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	wsServer.RegisterRoutes(e)

	return e
}
