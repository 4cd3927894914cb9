package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// CreateSession opens a session.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}

	sess, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// GetSession returns the session snapshot.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// GetTranscript returns the model-facing transcript.
// GET /v1/sessions/:session_id/transcript
func (h *Handler) GetTranscript(c echo.Context) error {
	sess, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.SessionID,
		"transcript": sess.Transcript,
	})
}

// GetUI returns the display list.
// GET /v1/sessions/:session_id/ui
func (h *Handler) GetUI(c echo.Context) error {
	sess, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.SessionID,
		"ui":         sess.UI,
	})
}

// SubmitMessage starts a turn.
// POST /v1/sessions/:session_id/messages
func (h *Handler) SubmitMessage(c echo.Context) error {
	var req domain.SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.SubmitUserMessage(c.Request().Context(), c.Param("session_id"), req.Content)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, resp)
}

// SelectRows records a grid selection.
// POST /v1/sessions/:session_id/selection
func (h *Handler) SelectRows(c echo.Context) error {
	var req domain.SelectRowsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sess, err := h.service.SelectRows(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.SessionID,
		"transcript": sess.Transcript,
	})
}

// RunQuery executes an edited query card.
// POST /v1/sessions/:session_id/queries/run
func (h *Handler) RunQuery(c echo.Context) error {
	var req domain.RunQueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UIEntryID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ui_entry_id is required"})
	}

	entry, err := h.service.RunQuery(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// ConfirmPurchase starts a purchase from a purchase control.
// POST /v1/sessions/:session_id/purchases
func (h *Handler) ConfirmPurchase(c echo.Context) error {
	var req domain.ConfirmPurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.ConfirmPurchase(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, resp)
}

// GetTurn returns a turn.
// GET /v1/turns/:turn_id
func (h *Handler) GetTurn(c echo.Context) error {
	turn, err := h.service.GetTurn(c.Request().Context(), c.Param("turn_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, turn)
}

// GetTurnEvents returns the trace events of a turn.
// GET /v1/turns/:turn_id/events
func (h *Handler) GetTurnEvents(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	types := c.QueryParams()["type"]

	events, err := h.service.GetTurnEvents(c.Request().Context(), c.Param("turn_id"), afterTs, types, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
