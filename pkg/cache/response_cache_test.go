package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey(t *testing.T) {
	k1 := Key("gpt-4o-mini", "prompt")
	assert.Len(t, k1, 64)
	assert.Equal(t, k1, Key("gpt-4o-mini", "prompt"))
	assert.NotEqual(t, k1, Key("gpt-4o", "prompt"))
	assert.NotEqual(t, k1, Key("gpt-4o-mini", "prompt2"))
	// Boundary between model and prompt must be unambiguous.
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestResponseCache_GetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(NewMemoryStore(10), time.Hour, zap.NewNop())

	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "SELECT 1 FROM t", nil
	}

	v, hit, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "SELECT 1 FROM t", v)

	v, hit, err = c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "SELECT 1 FROM t", v)
	assert.Equal(t, 1, calls)
}

func TestResponseCache_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(NewMemoryStore(10), time.Hour, zap.NewNop())

	_, _, err := c.GetOrLoad(ctx, "k", func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	require.Error(t, err)

	v, hit, err := c.GetOrLoad(ctx, "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestResponseCache_ConcurrentLoadsCoalesce(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(NewMemoryStore(10), time.Hour, zap.NewNop())

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const n = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, _, err := c.GetOrLoad(ctx, "same", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}
