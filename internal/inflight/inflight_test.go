package inflight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOneLeasePerKey(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()

	release, err := g.Acquire(ctx, "client-1", time.Minute)
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "client-1", time.Minute)
	require.ErrorIs(t, err, ErrBusy)

	other, err := g.Acquire(ctx, "client-2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := g.Acquire(ctx, "client-1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLeaseLapses(t *testing.T) {
	g := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	stale, err := g.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := g.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	stale()
	_, err = g.Acquire(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrBusy, "stale release must not drop the new lease")
	fresh()
}

func TestMemoryConcurrent(t *testing.T) {
	g := NewMemory()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Acquire(context.Background(), "same", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}
