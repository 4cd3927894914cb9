// Package v1 provides the HTTP handlers of the copilot API.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lawrencecchen/autobuild/internal/service"
	"github.com/lawrencecchen/autobuild/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/transcript", h.GetTranscript)
	e.GET("/v1/sessions/:session_id/ui", h.GetUI)

	// Turns and side channels
	e.POST("/v1/sessions/:session_id/messages", h.SubmitMessage)
	e.POST("/v1/sessions/:session_id/selection", h.SelectRows)
	e.POST("/v1/sessions/:session_id/queries/run", h.RunQuery)
	e.POST("/v1/sessions/:session_id/purchases", h.ConfirmPurchase)

	// Traces
	e.GET("/v1/turns/:turn_id", h.GetTurn)
	e.GET("/v1/turns/:turn_id/events", h.GetTurnEvents)

	// Confirmations
	e.GET("/v1/confirmations/:confirmation_id", h.GetConfirmation)
	e.POST("/v1/confirmations/:confirmation_id/decide", h.DecideConfirmation)

	// Catalog
	e.GET("/v1/tools", h.ListTools)
	e.GET("/v1/models", h.ListModels)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps a service error to its HTTP status.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, service.ErrTurnNotFound),
		errors.Is(err, service.ErrConfirmationNotFound),
		errors.Is(err, service.ErrUIEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrTurnInProgress),
		errors.Is(err, session.ErrSessionExists),
		errors.Is(err, service.ErrConfirmationNotPending):
		status = http.StatusConflict
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrEmptySQL),
		errors.Is(err, service.ErrNotQueryCard),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidPurchase),
		errors.Is(err, service.ErrMissingComponentID):
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
