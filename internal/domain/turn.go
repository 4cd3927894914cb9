package domain

import (
	"encoding/json"
	"time"
)

// Turn represents one user-message-to-settled-response cycle.
type Turn struct {
	TurnID    string          `json:"turn_id"`
	SessionID string          `json:"session_id"`
	Status    TurnStatus      `json:"status"`
	ToolName  string          `json:"tool_name,omitempty"`
	UIEntryID int64           `json:"ui_entry_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// Settled reports whether the turn reached a terminal state.
func (t *Turn) Settled() bool {
	return t.Status == TurnStatusSettled || t.Status == TurnStatusFailed
}

// Event represents a trace event for replay.
type Event struct {
	EventID string          `json:"event_id"`
	TurnID  string          `json:"turn_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// QueryConfirmation is a query that was not executed automatically and waits
// for the user to run or reject it.
type QueryConfirmation struct {
	ConfirmationID string             `json:"confirmation_id"`
	SessionID      string             `json:"session_id"`
	TurnID         string             `json:"turn_id"`
	UIEntryID      int64              `json:"ui_entry_id"`
	QueryKey       string             `json:"query_key"`
	SQL            string             `json:"sql"`
	Params         []string           `json:"params"`
	Status         ConfirmationStatus `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	DecidedAt      *time.Time         `json:"decided_at,omitempty"`
}
