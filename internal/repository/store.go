// Package repository persists sessions, turns, trace events and query
// confirmations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// ErrVersionConflict is returned when a session snapshot was saved by
// someone else since it was read.
var ErrVersionConflict = errors.New("session version conflict")

// Store defines the interface for data persistence. Getters return a nil
// value and a nil error when the record does not exist.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// SaveSession writes the snapshot if the stored version is prevVersion.
	SaveSession(ctx context.Context, session *domain.Session, prevVersion int64) error

	// Turn operations
	CreateTurn(ctx context.Context, turn *domain.Turn) error
	GetTurn(ctx context.Context, turnID string) (*domain.Turn, error)
	UpdateTurnStatus(ctx context.Context, turnID string, status domain.TurnStatus, toolName string) error
	UpdateTurnCompleted(ctx context.Context, turnID string, status domain.TurnStatus, errData []byte) error
	ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)
	// ListUnsettledTurns lists turns that never ended, oldest first.
	ListUnsettledTurns(ctx context.Context) ([]domain.Turn, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, turnID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Confirmation operations
	CreateConfirmation(ctx context.Context, c *domain.QueryConfirmation) error
	GetConfirmation(ctx context.Context, confirmationID string) (*domain.QueryConfirmation, error)
	// DecideConfirmation moves a PENDING confirmation to status and reports
	// whether it was still pending.
	DecideConfirmation(ctx context.Context, confirmationID string, status domain.ConfirmationStatus, reason string) (bool, error)
	ListExpiredConfirmations(ctx context.Context, timeout time.Duration, limit int) ([]domain.QueryConfirmation, error)

	// Lifecycle
	Close() error
}
