package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	c.gets++
	return c.Store.GetSession(ctx, id)
}

func TestCachedStoreServesSnapshots(t *testing.T) {
	ctx := context.Background()
	base := &countingStore{Store: newTestStore(t)}
	cached, err := NewCachedStore(base, 2)
	require.NoError(t, err)

	now := time.Now()
	s := &domain.Session{SessionID: "s1", UserID: "u1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, cached.CreateSession(ctx, s))

	_, err = cached.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, base.gets)

	next := *s
	next.Version = 1
	next.Transcript = s.Transcript.Append(domain.ConversationEntry{Role: domain.RoleUser, Content: "hi"})
	require.NoError(t, cached.SaveSession(ctx, &next, 0))

	got, err := cached.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.Transcript, 1)
	assert.Equal(t, 0, base.gets)

	stale := *s
	stale.Version = 1
	assert.ErrorIs(t, cached.SaveSession(ctx, &stale, 0), ErrVersionConflict)
	assert.Equal(t, 0, cached.Len())

	got, err = cached.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 1, base.gets)
	assert.Equal(t, 1, cached.Len())
}
