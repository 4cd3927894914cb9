package domain

import "time"

// Session is a snapshot of one conversation: both logs plus bookkeeping.
// Snapshots are values; a commit replaces the whole snapshot.
type Session struct {
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Version      int64      `json:"version"`
	ActiveTurnID string     `json:"active_turn_id,omitempty"`
	Transcript   Transcript `json:"transcript"`
	UI           UIList     `json:"ui"`
}
