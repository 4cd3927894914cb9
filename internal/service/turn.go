package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawrencecchen/autobuild/internal/adapter/d1"
	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
	"github.com/lawrencecchen/autobuild/internal/agent"
	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/retry"
	"github.com/lawrencecchen/autobuild/internal/session"
)

const systemPrompt = "" +
	"You are a Autobuild, a copilot that helps build internal tools. automate business processes, and discover business insights.\n" +
	"Autonomously use tools to fulfill user requests.\n" +
	"You can help users run SQL queries on the database.\n" +
	"You can run a read-only SQL query on the database using the `run_sql` function.\n" +
	"Use SQL parameters to prevent SQL injection attacks.\n" +
	"The database is a SQLite database. Use ? to specify parameters in the SQL query, and pass the parameters as an array to the `run_sql` function. Use backticks around table and column names.\n" +
	"You can also display a React component using the `display_react` function.\n" +
	"You may import `@mui/material` (v5.X.X) and use the components. Use Tailwind CSS for custom styling.\n" +
	"You may import `useQuery` from @tanstack/react-query (v4.X.X) and retrieve `run_sql` results. Use the object syntax to pass the query key, query function, and other parameters.\n" +
	"You may import `react-plotly.js` (v2.X.X) and use the components to display plots.\n" +
	"Use ESNext syntax and write TypeScript.\n" +
	"\n" +
	"Database schema:\n" +
	"\n"

// settleTimeout bounds the commits of a settling turn, which run even when
// the turn's own context is already done.
const (
	settleTimeout = 5 * time.Second
	settleTries   = 3
)

var (
	errAlreadySettled  = errors.New("turn already settled")
	errTurnInterrupted = errors.New("turn was interrupted")
)

// outcome is what a turn commits when it settles.
type outcome struct {
	status  domain.TurnStatus
	display domain.Display
	entry   domain.ConversationEntry
	code    string
	message string
}

// turnContext carries one turn from start to its single settlement.
type turnContext struct {
	svc       *Service
	turn      *domain.Turn
	sessionID string
	uiEntryID int64
	history   domain.Transcript
	text      string

	mu      sync.Mutex
	settled bool
	done    chan struct{}
}

func (s *Service) newTurnContext(turn *domain.Turn, history domain.Transcript) *turnContext {
	return &turnContext{
		svc:       s,
		turn:      turn,
		sessionID: turn.SessionID,
		uiEntryID: turn.UIEntryID,
		history:   history,
		done:      make(chan struct{}),
	}
}

func (tc *turnContext) isSettled() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.settled
}

// show replaces the turn's live UI entry. It is refused once settled.
func (tc *turnContext) show(ctx context.Context, d domain.Display) error {
	if tc.isSettled() {
		return errAlreadySettled
	}
	_, err := tc.svc.sessions.Update(ctx, tc.sessionID, func(s *domain.Session) error {
		ui, ok := s.UI.Replace(tc.uiEntryID, d, false)
		if !ok {
			return ErrUIEntryNotFound
		}
		s.UI = ui
		return nil
	})
	return err
}

// settle finalises the UI entry, appends exactly one transcript entry and
// releases the session. A second call is refused.
func (tc *turnContext) settle(ctx context.Context, o outcome) error {
	tc.mu.Lock()
	if tc.settled {
		tc.mu.Unlock()
		log.Printf("ERROR: turn %s settled twice", tc.turn.TurnID)
		return errAlreadySettled
	}
	tc.settled = true
	tc.mu.Unlock()
	defer close(tc.done)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	s := tc.svc
	turnID := tc.turn.TurnID
	defer s.releaseTurn(turnID)

	_, err := retry.Do(ctx, retry.Options{
		Tries: settleTries,
		Sleep: s.retrySleep,
		OnError: func(attempt int, err error) {
			log.Printf("WARN: settlement commit attempt %d of turn %s failed: %v", attempt+1, turnID, err)
		},
	}, func(ctx context.Context) (*domain.Session, error) {
		return s.sessions.Update(ctx, tc.sessionID, func(sess *domain.Session) error {
			if ui, ok := sess.UI.Replace(tc.uiEntryID, o.display, true); ok {
				sess.UI = ui
			} else {
				sess.UI = sess.UI.Append(domain.UIEntry{ID: tc.uiEntryID, Display: o.display, Final: true})
			}
			sess.Transcript = sess.Transcript.Append(o.entry)
			if sess.ActiveTurnID == turnID {
				sess.ActiveTurnID = ""
			}
			return nil
		})
	})
	if err != nil {
		log.Printf("ERROR: failed to commit settlement of turn %s: %v", turnID, err)
		s.releaseSession(ctx, tc.sessionID, turnID)
	}

	var errData []byte
	eventType := domain.EventTypeTurnSettled
	if o.status == domain.TurnStatusFailed {
		eventType = domain.EventTypeTurnFailed
		errData, _ = json.Marshal(map[string]string{"code": o.code, "message": o.message})
	}
	if err := s.store.UpdateTurnCompleted(ctx, turnID, o.status, errData); err != nil {
		log.Printf("WARN: failed to update turn %s: %v", turnID, err)
	}
	tc.turn.Status = o.status

	s.traceEvent(ctx, turnID, eventType, domain.TurnSettledPayload{
		ToolName: tc.turn.ToolName,
		Role:     o.entry.Role,
		Code:     o.code,
		Message:  o.message,
	})

	if s.notifier != nil {
		s.notifier.PublishTurnSettled(tc.sessionID, turnID, o.status)
	}
	return err
}

// releaseSession clears the session's active turn without touching its
// transcript.
func (s *Service) releaseSession(ctx context.Context, sessionID, turnID string) {
	_, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		if sess.ActiveTurnID == turnID {
			sess.ActiveTurnID = ""
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR: failed to release session %s from turn %s: %v", sessionID, turnID, err)
	}
}

// fail settles the turn on the error path.
func (tc *turnContext) fail(ctx context.Context, code string, err error) {
	msg := err.Error()
	_ = tc.settle(ctx, outcome{
		status:  domain.TurnStatusFailed,
		display: domain.NewDisplay(domain.DisplayError, msg, nil),
		entry: domain.ConversationEntry{
			Role:    domain.RoleSystem,
			Content: fmt.Sprintf("[Assistant response failed: %s]", msg),
		},
		code:    code,
		message: msg,
	})
}

// SubmitUserMessage commits the user's message, starts a turn in the
// background and returns as soon as the turn has started.
func (s *Service) SubmitUserMessage(ctx context.Context, sessionID, content string) (*domain.SubmitMessageResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	turnID := "turn_" + uuid.New().String()[:8]
	var entry domain.UIEntry
	sess, err := s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		if sess.ActiveTurnID != "" {
			if s.turnLive(sess.ActiveTurnID) {
				return session.ErrTurnInProgress
			}
			log.Printf("WARN: session %s held stale turn %s, releasing it", sessionID, sess.ActiveTurnID)
		}
		sess.Transcript = sess.Transcript.Append(domain.ConversationEntry{
			Role:    domain.RoleUser,
			Content: content,
		})
		entry = domain.UIEntry{
			ID:      s.sessions.NextUIEntryID(sess),
			Display: domain.NewDisplay(domain.DisplayThinking, "", nil),
		}
		sess.UI = sess.UI.Append(entry)
		sess.ActiveTurnID = turnID
		s.claimTurn(turnID)
		return nil
	})
	if err != nil {
		s.releaseTurn(turnID)
		return nil, err
	}

	turn := &domain.Turn{
		TurnID:    turnID,
		SessionID: sessionID,
		Status:    domain.TurnStatusStreaming,
		UIEntryID: entry.ID,
		StartedAt: s.now(),
	}
	tc := s.newTurnContext(turn, sess.Transcript)
	if err := s.store.CreateTurn(ctx, turn); err != nil {
		tc.fail(ctx, "internal", err)
		return nil, fmt.Errorf("failed to create turn: %w", err)
	}

	s.traceEvent(ctx, turnID, domain.EventTypeTurnStarted, domain.TurnStartedPayload{
		SessionID: sessionID,
		UIEntryID: entry.ID,
	})
	s.traceEvent(ctx, turnID, domain.EventTypeUserInput, domain.UserInputPayload{Content: content})

	t := s.spawn("turn "+turnID, func(ctx context.Context) error {
		s.runTurn(ctx, tc)
		return nil
	})
	// A task that is done already and never settled was refused by a
	// closed group.
	select {
	case <-t.Done():
		if !tc.isSettled() {
			tc.fail(ctx, "cancelled", t.Err())
			return nil, fmt.Errorf("failed to start turn: %w", t.Err())
		}
	default:
	}

	return &domain.SubmitMessageResponse{
		TurnID:    turnID,
		SessionID: sessionID,
		UIEntry:   entry,
	}, nil
}

// RecoverInterruptedTurns fails every turn left unsettled by a previous
// process, releasing its session.
func (s *Service) RecoverInterruptedTurns(ctx context.Context) error {
	turns, err := s.store.ListUnsettledTurns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unsettled turns: %w", err)
	}
	for i := range turns {
		turn := turns[i]
		if s.turnLive(turn.TurnID) {
			continue
		}
		log.Printf("WARN: failing interrupted turn %s of session %s", turn.TurnID, turn.SessionID)
		s.newTurnContext(&turn, nil).fail(ctx, "interrupted", errTurnInterrupted)
	}
	return nil
}

// runTurn streams the completion and dispatches its terminal event.
func (s *Service) runTurn(ctx context.Context, tc *turnContext) {
	if s.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TurnTimeout)
		defer cancel()
	}
	turnID := tc.turn.TurnID

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: turn %s panicked: %v", turnID, r)
			tc.fail(ctx, "panic", fmt.Errorf("internal error: %v", r))
		}
	}()

	schema := s.databaseSchema(ctx)
	temperature := 0.0
	req := &llm.ChatCompletionRequest{
		Model:       s.config.OpenAIModel,
		Messages:    buildMessages(schema, tc.history),
		Temperature: &temperature,
		Stream:      true,
		Functions:   s.registry.Functions(),
	}

	requestID := "req_" + uuid.New().String()[:8]
	s.traceEvent(ctx, turnID, domain.EventTypeLLMCallStarted, domain.LLMCallStartedPayload{
		RequestID: requestID,
		Model:     req.Model,
		Stream:    true,
	})

	startTime := time.Now()
	acc := agent.NewAccumulator()
	usage, err := s.llmClient.CreateChatCompletionStream(ctx, req, func(chunk *llm.StreamChunk) error {
		for _, ev := range acc.Push(chunk) {
			text, ok := ev.(agent.TextEvent)
			if !ok {
				continue
			}
			s.traceEvent(ctx, turnID, domain.EventTypeStreamDelta, map[string]string{"text": text.Content})
			if err := tc.show(ctx, domain.NewDisplay(domain.DisplayText, text.Content, nil)); err != nil {
				log.Printf("WARN: failed to stream text for turn %s: %v", turnID, err)
			}
		}
		return nil
	})

	donePayload := domain.LLMCallDonePayload{
		RequestID: requestID,
		Model:     req.Model,
		LatencyMs: time.Since(startTime).Milliseconds(),
	}
	if usage != nil {
		donePayload.PromptTokens = usage.PromptTokens
		donePayload.CompletionTokens = usage.CompletionTokens
		donePayload.TotalTokens = usage.TotalTokens
	}
	if err != nil {
		donePayload.Error = err.Error()
	}
	s.traceEvent(ctx, turnID, domain.EventTypeLLMCallDone, donePayload)

	if err != nil {
		log.Printf("ERROR: completion failed for turn %s: %v", turnID, err)
		tc.fail(ctx, "llm_error", err)
		return
	}

	tc.text = acc.Text()
	final, finishErr := acc.Finish()
	s.dispatch(ctx, tc, final, finishErr)
}

// databaseSchema returns the schema for the prompt, or an empty schema when
// it cannot be fetched.
func (s *Service) databaseSchema(ctx context.Context) string {
	if s.db == nil {
		return ""
	}
	schema, err := retry.Do(ctx, retry.Options{
		Tries: 3,
		Sleep: s.retrySleep,
		OnError: func(attempt int, err error) {
			log.Printf("WARN: schema fetch attempt %d failed: %v", attempt+1, err)
		},
	}, func(ctx context.Context) (string, error) {
		return d1.Schema(ctx, s.db)
	})
	if err != nil {
		log.Printf("WARN: continuing without database schema: %v", err)
		return ""
	}
	return schema
}

// buildMessages prepends the system prompt to the transcript.
func buildMessages(schema string, history domain.Transcript) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{
		Role:    string(domain.RoleSystem),
		Content: systemPrompt + schema,
	})
	for _, e := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    string(e.Role),
			Content: e.Content,
			Name:    e.Name,
		})
	}
	return messages
}

// GetTurn returns a turn by ID.
func (s *Service) GetTurn(ctx context.Context, turnID string) (*domain.Turn, error) {
	turn, err := s.store.GetTurn(ctx, turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	if turn == nil {
		return nil, ErrTurnNotFound
	}
	return turn, nil
}

// GetTurnEvents returns the trace events of a turn.
func (s *Service) GetTurnEvents(ctx context.Context, turnID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.GetTurn(ctx, turnID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, turnID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
