package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// GetConfirmation returns a query confirmation.
// GET /v1/confirmations/:confirmation_id
func (h *Handler) GetConfirmation(c echo.Context) error {
	conf, err := h.service.GetConfirmation(c.Request().Context(), c.Param("confirmation_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, conf)
}

// DecideConfirmation approves or rejects a pending query.
// POST /v1/confirmations/:confirmation_id/decide
func (h *Handler) DecideConfirmation(c echo.Context) error {
	var req domain.ConfirmationDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Decision == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decision is required"})
	}

	conf, err := h.service.DecideConfirmation(c.Request().Context(), c.Param("confirmation_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, conf)
}

// ListTools returns the actions offered to the model.
// GET /v1/tools
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListTools())
}

// ListModels returns the completion provider's models.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	models, err := h.service.ListModels(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   models,
	})
}
