package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardRunsOnce(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()
	calls := 0

	res, replayed, err := g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) {
		calls++
		return []byte("first"), nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("first"), res)

	res, replayed, err = g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) {
		calls++
		return []byte("second"), nil
	})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, []byte("first"), res)
	assert.Equal(t, 1, calls)
}

func TestMemoryGuardKeysAreIndependent(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	_, _, err := g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) { return []byte("a"), nil })
	require.NoError(t, err)

	res, replayed, err := g.RunOnce(ctx, "k2", func(context.Context) ([]byte, error) { return []byte("b"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("b"), res)
}

func TestMemoryGuardErrorRecordsNothing(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	res, replayed, err := g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("ok"), res)
}

func TestMemoryGuardConcurrentCallersExecuteOnce(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := g.RunOnce(ctx, "k1", func(context.Context) ([]byte, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return []byte("done"), nil
			})
			// concurrent losers may see ErrInProgress; nothing else
			if err != nil {
				assert.ErrorIs(t, err, ErrInProgress)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}
