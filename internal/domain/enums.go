// Package domain defines the core domain models for the copilot backend.
package domain

// Role is the author of a transcript entry as seen by the model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// TurnStatus represents the status of a conversational turn.
type TurnStatus string

const (
	TurnStatusStreaming   TurnStatus = "STREAMING"
	TurnStatusDispatching TurnStatus = "DISPATCHING"
	TurnStatusSettled     TurnStatus = "SETTLED"
	TurnStatusFailed      TurnStatus = "FAILED"
)

// EventType represents the type of a turn trace event.
type EventType string

const (
	EventTypeTurnStarted  EventType = "turn_started"
	EventTypeUserInput    EventType = "user_input"
	EventTypeStreamDelta  EventType = "stream_delta"
	EventTypeTurnSettled  EventType = "turn_settled"
	EventTypeTurnFailed   EventType = "turn_failed"
	// LLM call events
	EventTypeLLMCallStarted EventType = "llm_call_started"
	EventTypeLLMCallDone    EventType = "llm_call_done"

	// Action events
	EventTypeToolCallParsed       EventType = "tool_call_parsed"
	EventTypePolicyDecision       EventType = "policy_decision"
	EventTypeQueryExecuted        EventType = "query_executed"
	EventTypeConfirmationRequired EventType = "confirmation_required"
	EventTypeConfirmationDecision EventType = "confirmation_decision"
	EventTypeEndpointCreated      EventType = "endpoint_created"
	EventTypeEndpointReady        EventType = "endpoint_ready"
)

// ConfirmationStatus represents the status of a query waiting for the user.
type ConfirmationStatus string

const (
	ConfirmationStatusPending  ConfirmationStatus = "PENDING"
	ConfirmationStatusExecuted ConfirmationStatus = "EXECUTED"
	ConfirmationStatusRejected ConfirmationStatus = "REJECTED"
	ConfirmationStatusExpired  ConfirmationStatus = "EXPIRED"
)

// DisplayKind identifies how a UI entry is rendered by the client.
type DisplayKind string

const (
	DisplayThinking       DisplayKind = "thinking"
	DisplayText           DisplayKind = "text"
	DisplayRunSQL         DisplayKind = "run_sql"
	DisplayReact          DisplayKind = "react"
	DisplayStocksSkeleton DisplayKind = "stocks_skeleton"
	DisplayStocks         DisplayKind = "stocks"
	DisplayEventsSkeleton DisplayKind = "events_skeleton"
	DisplayEvents         DisplayKind = "events"
	DisplayStockSkeleton  DisplayKind = "stock_skeleton"
	DisplayStock          DisplayKind = "stock"
	DisplayPurchase       DisplayKind = "purchase"
	DisplayPurchasing     DisplayKind = "purchasing"
	DisplaySystem         DisplayKind = "system"
	DisplayError          DisplayKind = "error"
)
