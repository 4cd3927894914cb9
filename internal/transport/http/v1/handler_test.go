package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
	"github.com/lawrencecchen/autobuild/internal/config"
	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/repository"
	"github.com/lawrencecchen/autobuild/internal/service"
	"github.com/lawrencecchen/autobuild/internal/session"
	"github.com/lawrencecchen/autobuild/policy"
	"github.com/lawrencecchen/autobuild/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service, repository.Store) {
	t.Helper()
	ctx := context.Background()

	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	cfg := &config.Config{OpenAIModel: "gpt-test", TurnTimeout: 5 * time.Second}
	svc := service.New(cfg, service.Deps{
		Store:    db,
		Sessions: session.NewManager(db, nil),
		LLM:      llm.NewMockClient(),
		Policy:   policyEngine,
	})
	t.Cleanup(func() {
		_ = svc.Shutdown(context.Background())
	})
	return NewHandler(svc), svc, db
}

func newJSONContext(e *echo.Echo, method, path, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodGet, "/health", "")
	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateSession(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions", `{"session_id":"s1","user_id":"u1"}`)
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "s1", sess.SessionID)
	assert.Equal(t, "u1", sess.UserID)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions", `{"session_id":"s1"}`)
	require.NoError(t, h.CreateSession(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions", "")
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "anonymous", sess.UserID)
}

func TestGetSessionNotFound(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	for _, handler := range []echo.HandlerFunc{h.GetSession, h.GetTranscript, h.GetUI} {
		c, rec := newJSONContext(e, http.MethodGet, "/v1/sessions/missing", "", "session_id", "missing")
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, session.ErrSessionNotFound.Error(), decodeError(t, rec))
	}
}

func TestSubmitMessageRunsTurn(t *testing.T) {
	e := echo.New()
	h, svc, _ := newTestHandler(t)
	ctx := context.Background()
	_, err := svc.CreateSession(ctx, domain.CreateSessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions/s1/messages", `{"content":"hello"}`, "session_id", "s1")
	require.NoError(t, h.SubmitMessage(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp domain.SubmitMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TurnID)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, domain.DisplayThinking, resp.UIEntry.Display.Kind)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitIdle(waitCtx))

	c, rec = newJSONContext(e, http.MethodGet, "/v1/sessions/s1/transcript", "", "session_id", "s1")
	require.NoError(t, h.GetTranscript(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transcript domain.Transcript `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transcript, 2)
	assert.Equal(t, domain.RoleUser, body.Transcript[0].Role)
	assert.Equal(t, domain.RoleAssistant, body.Transcript[1].Role)

	c, rec = newJSONContext(e, http.MethodGet, "/v1/turns/"+resp.TurnID, "", "turn_id", resp.TurnID)
	require.NoError(t, h.GetTurn(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var turn domain.Turn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, domain.TurnStatusSettled, turn.Status)

	c, rec = newJSONContext(e, http.MethodGet, "/v1/turns/"+resp.TurnID+"/events?type=user_input", "", "turn_id", resp.TurnID)
	require.NoError(t, h.GetTurnEvents(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Events []domain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, domain.EventTypeUserInput, events.Events[0].Type)
}

func TestSubmitMessageValidation(t *testing.T) {
	e := echo.New()
	h, svc, _ := newTestHandler(t)
	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions/s1/messages", `{"content":""}`, "session_id", "s1")
	require.NoError(t, h.SubmitMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions/s1/messages", `{bad json`, "session_id", "s1")
	require.NoError(t, h.SubmitMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions/nope/messages", `{"content":"hi"}`, "session_id", "nope")
	require.NoError(t, h.SubmitMessage(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectRowsHandler(t *testing.T) {
	e := echo.New()
	h, svc, _ := newTestHandler(t)
	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions/s1/selection",
		`{"component_id":"grid1","rows":[{"name":"Ada","id":1}]}`, "session_id", "s1")
	require.NoError(t, h.SelectRows(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transcript domain.Transcript `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transcript, 1)
	assert.Equal(t, `[User has selected the following rows: {"name":"Ada","id":1}]`, body.Transcript[0].Content)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions/s1/selection", `{"rows":[]}`, "session_id", "s1")
	require.NoError(t, h.SelectRows(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunQueryHandlerValidation(t *testing.T) {
	e := echo.New()
	h, svc, _ := newTestHandler(t)
	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions/s1/queries/run", `{"sql":"SELECT 1"}`, "session_id", "s1")
	require.NoError(t, h.RunQuery(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions/s1/queries/run", `{"ui_entry_id":7,"sql":"SELECT 1"}`, "session_id", "s1")
	require.NoError(t, h.RunQuery(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmPurchaseHandler(t *testing.T) {
	e := echo.New()
	h, svc, _ := newTestHandler(t)
	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/sessions/s1/purchases", `{"symbol":"AAPL","price":2,"amount":5000}`, "session_id", "s1")
	require.NoError(t, h.ConfirmPurchase(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/sessions/s1/purchases", `{"symbol":"AAPL","price":2,"amount":5}`, "session_id", "s1")
	require.NoError(t, h.ConfirmPurchase(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp domain.ConfirmPurchaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.DisplayPurchasing, resp.PurchasingEntry.Display.Kind)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitIdle(waitCtx))
}

func TestConfirmationHandlers(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodGet, "/v1/confirmations/qc_1", "", "confirmation_id", "qc_1")
	require.NoError(t, h.GetConfirmation(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/confirmations/qc_1/decide", `{}`, "confirmation_id", "qc_1")
	require.NoError(t, h.DecideConfirmation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/confirmations/qc_1/decide", `{"decision":"later"}`, "confirmation_id", "qc_1")
	require.NoError(t, h.DecideConfirmation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/v1/confirmations/qc_1/decide", `{"decision":"approve"}`, "confirmation_id", "qc_1")
	require.NoError(t, h.DecideConfirmation(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListToolsAndModels(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodGet, "/v1/tools", "")
	require.NoError(t, h.ListTools(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var tools domain.ListToolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	assert.Len(t, tools.Tools, 6)
	assert.Equal(t, "run_sql", tools.Tools[0].Name)

	c, rec = newJSONContext(e, http.MethodGet, "/v1/models", "")
	require.NoError(t, h.ListModels(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mock-gpt-3.5-turbo")
}

func TestErrorResponseStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", service.ErrTurnNotFound), http.StatusNotFound},
		{session.ErrTurnInProgress, http.StatusConflict},
		{service.ErrConfirmationNotPending, http.StatusConflict},
		{service.ErrEmptyMessage, http.StatusBadRequest},
		{fmt.Errorf("%w: amount", service.ErrInvalidPurchase), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c, rec := newJSONContext(e, http.MethodGet, "/", "")
			require.NoError(t, errorResponse(c, tt.err))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), decodeError(t, rec))
		})
	}
}
