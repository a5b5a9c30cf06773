package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry should be dropped on access")
}

func TestMemoryStore_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(10)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	now = now.Add(1000 * time.Hour)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryStore_EvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, s.Set(ctx, "b", "2", time.Hour))
	require.NoError(t, s.Set(ctx, "c", "3", time.Hour))

	assert.Equal(t, 2, s.Len())
	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok, _ = s.Get(ctx, "b")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryStore_OverwriteRefreshesAge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, s.Set(ctx, "b", "2", time.Hour))
	require.NoError(t, s.Set(ctx, "a", "1b", time.Hour))
	require.NoError(t, s.Set(ctx, "c", "3", time.Hour))

	_, ok, _ := s.Get(ctx, "b")
	assert.False(t, ok)
	v, ok, _ := s.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1b", v)
}

func TestMemoryStore_Close(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Len())
}
