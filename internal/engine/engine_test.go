package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) Task {
	return func(context.Context) ([]any, error) { return []any{v}, nil }
}

func TestSyncRunsInline(t *testing.T) {
	s := NewSync("test-sync")
	assert.False(t, s.Async())

	out, err := s.Submit(context.Background(), constant(42)).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{42}, out)

	s.Shutdown()
	_, err = s.Submit(context.Background(), constant(1)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSyncRecoversPanics(t *testing.T) {
	s := NewSync("test-panic")
	_, err := s.Submit(context.Background(), func(context.Context) ([]any, error) {
		panic("boom")
	}).Wait(context.Background())
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
}

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool("test-pool", 4, 8)
	defer p.Drain()
	assert.True(t, p.Async())

	futures := make([]*Future, 10)
	for i := range futures {
		futures[i] = p.Submit(context.Background(), constant(i))
	}
	for i, f := range futures {
		out, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []any{i}, out)
	}
}

func TestPoolShutdownCancelsOutstanding(t *testing.T) {
	p := NewPool("test-cancel", 1, 4)
	release := make(chan struct{})
	started := make(chan struct{})

	blocking := p.Submit(context.Background(), func(ctx context.Context) ([]any, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	<-started
	queued := p.Submit(context.Background(), constant("never"))

	p.Shutdown()
	p.Shutdown() // idempotent
	close(release)

	_, err := queued.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = blocking.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = p.Submit(context.Background(), constant(1)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestFutureWaitHonoursContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistryLifecycle(t *testing.T) {
	var created atomic.Int32
	Register("test-registry", func(name string) Executor {
		created.Add(1)
		return NewSync(name)
	})

	a, err := Get("test-registry")
	require.NoError(t, err)
	b, err := Get("test-registry")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.EqualValues(t, 1, created.Load())

	Shutdown("test-registry")
	Shutdown("test-registry")
	_, err = a.Submit(context.Background(), constant(1)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	c, err := Get("test-registry")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.EqualValues(t, 2, created.Load())

	_, err = Get("missing")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, Names(), SyncBackend)
	assert.Contains(t, Names(), PoolBackend)
}
