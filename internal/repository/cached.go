package repository

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// CachedStore serves session snapshots from an LRU cache in front of a Store.
// Snapshots are immutable values, so cached copies can be handed out freely.
type CachedStore struct {
	Store
	sessions *lru.Cache[string, domain.Session]
}

// NewCachedStore wraps store with a session cache of the given size.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, domain.Session](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &CachedStore{Store: store, sessions: cache}, nil
}

// CreateSession creates a session and caches it.
func (c *CachedStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := c.Store.CreateSession(ctx, session); err != nil {
		return err
	}
	c.sessions.Add(session.SessionID, *session)
	return nil
}

// GetSession returns the cached snapshot or loads it.
func (c *CachedStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if s, ok := c.sessions.Get(sessionID); ok {
		return &s, nil
	}
	s, err := c.Store.GetSession(ctx, sessionID)
	if err != nil || s == nil {
		return s, err
	}
	c.sessions.Add(sessionID, *s)
	return s, nil
}

// SaveSession saves the snapshot and replaces the cached copy. On a version
// conflict the cached copy is dropped so the next read reloads it.
func (c *CachedStore) SaveSession(ctx context.Context, session *domain.Session, prevVersion int64) error {
	if err := c.Store.SaveSession(ctx, session, prevVersion); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			c.sessions.Remove(session.SessionID)
		}
		return err
	}
	c.sessions.Add(session.SessionID, *session)
	return nil
}

// Len returns the number of cached sessions.
func (c *CachedStore) Len() int {
	return c.sessions.Len()
}
