// Package agent turns a streamed completion into typed turn events.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
)

// ErrMalformedArguments is returned when a streamed call's arguments are not JSON.
var ErrMalformedArguments = errors.New("malformed function call arguments")

// TurnEvent is either a TextEvent or a ToolCallEvent.
type TurnEvent interface {
	isTurnEvent()
}

// TextEvent carries the full text accumulated so far.
type TextEvent struct {
	Content string
	Final   bool
}

// ToolCallEvent is the model's request to run a named action.
type ToolCallEvent struct {
	Name      string
	Arguments json.RawMessage
}

func (TextEvent) isTurnEvent()     {}
func (ToolCallEvent) isTurnEvent() {}

// PendingToolCall is a function call whose arguments are still streaming.
type PendingToolCall struct {
	Name         string
	RawArguments string
}

// Accumulator folds stream chunks for a single turn. It is not safe for
// concurrent use.
type Accumulator struct {
	text    string
	call    *PendingToolCall
	callIdx int
	ignored int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{callIdx: -1}
}

// Text returns the text accumulated so far.
func (a *Accumulator) Text() string {
	return a.text
}

// Pending returns the call being accumulated, if any.
func (a *Accumulator) Pending() *PendingToolCall {
	return a.call
}

// Push folds one chunk and returns the non-terminal events it produced.
func (a *Accumulator) Push(chunk *llm.StreamChunk) []TurnEvent {
	if chunk == nil || len(chunk.Choices) == 0 {
		return nil
	}
	delta := chunk.Choices[0].Delta
	if delta == nil {
		return nil
	}

	var events []TurnEvent
	if delta.Content != "" {
		a.text += delta.Content
		events = append(events, TextEvent{Content: a.text})
	}

	if delta.FunctionCall != nil {
		a.pushCall(0, *delta.FunctionCall)
	}
	for _, tc := range delta.ToolCalls {
		a.pushCall(tc.Index, tc.Function)
	}
	return events
}

func (a *Accumulator) pushCall(index int, fc llm.FunctionCall) {
	if a.call == nil {
		a.call = &PendingToolCall{}
		a.callIdx = index
	}
	if index != a.callIdx {
		a.ignored++
		if fc.Name != "" {
			log.Printf("WARN: ignoring additional function call %q in the same turn", fc.Name)
		}
		return
	}
	if fc.Name != "" && a.call.Name == "" {
		a.call.Name = fc.Name
	}
	a.call.RawArguments += fc.Arguments
}

// Finish returns the single terminal event of the stream.
func (a *Accumulator) Finish() (TurnEvent, error) {
	if a.call == nil {
		return TextEvent{Content: a.text, Final: true}, nil
	}
	if a.call.Name == "" {
		return nil, fmt.Errorf("%w: function call without a name", ErrMalformedArguments)
	}

	raw := a.call.RawArguments
	if raw == "" {
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		return ToolCallEvent{Name: a.call.Name}, fmt.Errorf("%w for %s", ErrMalformedArguments, a.call.Name)
	}
	return ToolCallEvent{Name: a.call.Name, Arguments: json.RawMessage(raw)}, nil
}
