// Package service runs conversational turns: it streams a completion, turns
// the terminal event into an action, and commits the results to the
// session's transcript and UI list.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lawrencecchen/autobuild/internal/adapter/d1"
	"github.com/lawrencecchen/autobuild/internal/adapter/deploy"
	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
	"github.com/lawrencecchen/autobuild/internal/config"
	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/repository"
	"github.com/lawrencecchen/autobuild/internal/session"
	"github.com/lawrencecchen/autobuild/internal/task"
	"github.com/lawrencecchen/autobuild/internal/tools"
	"github.com/lawrencecchen/autobuild/policy"
)

var (
	// ErrEmptyMessage is returned when a user message has no content.
	ErrEmptyMessage = errors.New("message content is required")
	// ErrTurnNotFound is returned for an unknown turn ID.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrUIEntryNotFound is returned when a side channel names a missing UI entry.
	ErrUIEntryNotFound = errors.New("ui entry not found")
	// ErrNotQueryCard is returned when a UI entry is not an editable query card.
	ErrNotQueryCard = errors.New("ui entry is not a query card")
	// ErrConfirmationNotFound is returned for an unknown confirmation ID.
	ErrConfirmationNotFound = errors.New("confirmation not found")
	// ErrConfirmationNotPending is returned when a confirmation was already decided.
	ErrConfirmationNotPending = errors.New("confirmation is not pending")
	// ErrInvalidDecision is returned for a decision other than approve or reject.
	ErrInvalidDecision = errors.New("decision must be approve or reject")
	// ErrInvalidPurchase is returned for a purchase outside the allowed range.
	ErrInvalidPurchase = errors.New("invalid purchase")
)

// Notifier is told when a turn settles.
type Notifier interface {
	PublishTurnSettled(sessionID, turnID string, status domain.TurnStatus)
}

// Deps are the collaborators of a Service. Deployer and Notifier may be nil.
type Deps struct {
	Store    repository.Store
	Sessions *session.Manager
	LLM      llm.LLMClient
	Database d1.Querier
	Deployer deploy.Deployer
	Registry *tools.Registry
	Policy   *policy.Engine
	Notifier Notifier
}

// Service owns turn orchestration and the side channels that edit a session
// without starting a turn.
type Service struct {
	store        repository.Store
	sessions     *session.Manager
	llmClient    llm.LLMClient
	db           d1.Querier
	deployer     deploy.Deployer
	registry     *tools.Registry
	policyEngine *policy.Engine
	notifier     Notifier
	config       *config.Config

	tasks      *task.Group
	retrySleep time.Duration
	now        func() time.Time

	mu       sync.Mutex
	inflight map[*task.Task]struct{}
	live     map[string]struct{} // turns owned by this process
}

// New creates a service. Background work runs until Shutdown.
func New(cfg *config.Config, deps Deps) *Service {
	registry := deps.Registry
	if registry == nil {
		registry = tools.DefaultRegistry
	}
	return &Service{
		store:        deps.Store,
		sessions:     deps.Sessions,
		llmClient:    deps.LLM,
		db:           deps.Database,
		deployer:     deps.Deployer,
		registry:     registry,
		policyEngine: deps.Policy,
		notifier:     deps.Notifier,
		config:       cfg,
		tasks:        task.NewGroup(context.Background()),
		retrySleep:   500 * time.Millisecond,
		now:          time.Now,
		inflight:     make(map[*task.Task]struct{}),
		live:         make(map[string]struct{}),
	}
}

// spawn starts fn as a tracked background task.
func (s *Service) spawn(name string, fn func(ctx context.Context) error) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks.Go(name, fn)
	s.inflight[t] = struct{}{}
	go func() {
		<-t.Done()
		s.mu.Lock()
		delete(s.inflight, t)
		s.mu.Unlock()
	}()
	return t
}

func (s *Service) claimTurn(turnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[turnID] = struct{}{}
}

func (s *Service) releaseTurn(turnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, turnID)
}

// turnLive reports whether turnID is running in this process. A session
// pointing at any other turn holds a stale lock.
func (s *Service) turnLive(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[turnID]
	return ok
}

// WaitIdle blocks until no background task is running or ctx is done.
func (s *Service) WaitIdle(ctx context.Context) error {
	for {
		var next *task.Task
		s.mu.Lock()
		for t := range s.inflight {
			next = t
			break
		}
		s.mu.Unlock()

		if next == nil {
			return nil
		}
		select {
		case <-next.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown cancels running turns and background work and waits for them.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.tasks.Shutdown(ctx)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
