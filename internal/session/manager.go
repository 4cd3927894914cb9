// Package session serialises commits to a session's transcript and UI list.
//
// Each commit reads the current snapshot, applies a function to a copy and
// persists the result as a whole, so a turn's captured snapshot never changes
// underneath it.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/repository"
)

var (
	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session with a taken ID.
	ErrSessionExists = errors.New("session already exists")
	// ErrTurnInProgress is returned when a session already has an active turn.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
)

// Publisher receives the UI entries changed by each commit.
type Publisher interface {
	PublishUI(sessionID string, entries []domain.UIEntry)
}

// Manager owns session commits.
type Manager struct {
	store     repository.Store
	publisher Publisher
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager. publisher may be nil.
func NewManager(store repository.Store, publisher Publisher) *Manager {
	return &Manager{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

// Create opens a new session. An empty sessionID gets a generated one.
func (m *Manager) Create(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	if userID == "" {
		userID = "anonymous"
	}

	existing, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if existing != nil {
		return nil, ErrSessionExists
	}

	now := m.now()
	s := &domain.Session{
		SessionID:  sessionID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Transcript: domain.Transcript{},
		UI:         domain.UIList{},
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Get returns the current snapshot.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Update applies fn to a copy of the current snapshot and commits the copy.
// Commits to one session are serialised. An error from fn aborts the commit
// and is returned unchanged.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(s *domain.Session) error) (*domain.Session, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	cur, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next := *cur
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.SessionID = cur.SessionID
	next.Version = cur.Version + 1
	next.UpdatedAt = m.now()

	if err := m.store.SaveSession(ctx, &next, cur.Version); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if m.publisher != nil {
		if changed := changedEntries(cur.UI, next.UI); len(changed) > 0 {
			m.publisher.PublishUI(sessionID, changed)
		}
	}
	return &next, nil
}

// NextUIEntryID returns an id for a new entry of s created now.
func (m *Manager) NextUIEntryID(s *domain.Session) int64 {
	return s.UI.NextID(m.now().UnixMilli())
}

func changedEntries(prev, next domain.UIList) []domain.UIEntry {
	var out []domain.UIEntry
	for _, e := range next {
		old, ok := prev.Find(e.ID)
		if !ok || !reflect.DeepEqual(old, e) {
			out = append(out, e)
		}
	}
	return out
}
