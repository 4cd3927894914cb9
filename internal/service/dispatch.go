package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lawrencecchen/autobuild/internal/agent"
	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/tools"
)

// dispatch turns the terminal event of a stream into the turn's outcome.
func (s *Service) dispatch(ctx context.Context, tc *turnContext, final agent.TurnEvent, finishErr error) {
	switch ev := final.(type) {
	case agent.TextEvent:
		_ = tc.settle(ctx, outcome{
			status:  domain.TurnStatusSettled,
			display: domain.NewDisplay(domain.DisplayText, ev.Content, nil),
			entry:   domain.ConversationEntry{Role: domain.RoleAssistant, Content: ev.Content},
		})

	case agent.ToolCallEvent:
		s.markDispatching(ctx, tc, ev.Name)
		if finishErr != nil {
			s.traceEvent(ctx, tc.turn.TurnID, domain.EventTypeToolCallParsed, domain.ToolCallParsedPayload{
				ToolName: ev.Name,
				Error:    finishErr.Error(),
			})
			s.settleInvalidArgs(ctx, tc, ev.Name, "arguments are not valid JSON")
			return
		}

		args, err := s.registry.Parse(ev.Name, ev.Arguments)
		parsed := domain.ToolCallParsedPayload{ToolName: ev.Name, Args: ev.Arguments}
		if err != nil {
			parsed.Error = err.Error()
		}
		s.traceEvent(ctx, tc.turn.TurnID, domain.EventTypeToolCallParsed, parsed)

		if err != nil {
			reason := err.Error()
			var argsErr *tools.ArgsError
			switch {
			case errors.As(err, &argsErr):
				reason = argsErr.Reason
			case errors.Is(err, tools.ErrUnknownTool):
				reason = "unknown tool"
			}
			s.settleInvalidArgs(ctx, tc, ev.Name, reason)
			return
		}
		s.runAction(ctx, tc, args)

	default:
		if finishErr == nil {
			finishErr = fmt.Errorf("unexpected terminal event %T", final)
		}
		tc.fail(ctx, "malformed_response", finishErr)
	}
}

// runAction calls the handler of a parsed action. Every handler settles.
func (s *Service) runAction(ctx context.Context, tc *turnContext, args tools.Args) {
	switch a := args.(type) {
	case tools.RunSQLArgs:
		s.runSQL(ctx, tc, a)
	case tools.DisplayReactArgs:
		s.displayReact(ctx, tc, a)
	case tools.ListStocksArgs:
		s.listStocks(ctx, tc, a)
	case tools.GetEventsArgs:
		s.getEvents(ctx, tc, a)
	case tools.ShowStockPriceArgs:
		s.showStockPrice(ctx, tc, a)
	case tools.ShowStockPurchaseArgs:
		s.showStockPurchase(ctx, tc, a)
	default:
		tc.fail(ctx, "internal", fmt.Errorf("no handler for %T", args))
	}
}

func (s *Service) markDispatching(ctx context.Context, tc *turnContext, toolName string) {
	tc.turn.Status = domain.TurnStatusDispatching
	tc.turn.ToolName = toolName
	if err := s.store.UpdateTurnStatus(ctx, tc.turn.TurnID, domain.TurnStatusDispatching, toolName); err != nil {
		log.Printf("WARN: failed to mark turn %s dispatching: %v", tc.turn.TurnID, err)
	}
}

func (s *Service) settleInvalidArgs(ctx context.Context, tc *turnContext, toolName, reason string) {
	msg := fmt.Sprintf("Invalid arguments for %s: %s", toolName, reason)
	_ = tc.settle(ctx, outcome{
		status:  domain.TurnStatusFailed,
		display: domain.NewDisplay(domain.DisplayError, msg, nil),
		entry: domain.ConversationEntry{
			Role:    domain.RoleFunction,
			Name:    toolName,
			Content: "[" + msg + "]",
		},
		code:    "invalid_args",
		message: msg,
	})
}

// settleAction settles a handled action with a function transcript entry.
func (tc *turnContext) settleAction(ctx context.Context, name string, display domain.Display, content string) error {
	return tc.settle(ctx, outcome{
		status:  domain.TurnStatusSettled,
		display: display,
		entry: domain.ConversationEntry{
			Role:    domain.RoleFunction,
			Name:    name,
			Content: content,
		},
	})
}

// display builds a display that keeps the text streamed before the call.
func (tc *turnContext) display(kind domain.DisplayKind, data interface{}) domain.Display {
	return domain.NewDisplay(kind, tc.text, data)
}
