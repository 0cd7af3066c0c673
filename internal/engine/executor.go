package engine

import (
	"context"
	"sync/atomic"

	"github.com/gyaneshwarpardhi/dispatch/internal/metrics"
)

// Executor evaluates node callables on behalf of the solver.
type Executor interface {
	// Name returns the key this executor is registered under.
	Name() string
	// Async reports whether Submit returns before the task completes.
	// The solver only submits ahead of time to asynchronous executors.
	Async() bool
	// Submit schedules t and returns its pending result.
	Submit(ctx context.Context, t Task) *Future
	// Shutdown aborts outstanding submissions with ErrCancelled. It is idempotent.
	Shutdown()
}

// Sync runs every task inline on the caller's goroutine.
type Sync struct {
	name   string
	closed atomic.Bool
}

// NewSync creates a synchronous executor.
func NewSync(name string) *Sync {
	return &Sync{name: name}
}

func (s *Sync) Name() string { return s.name }
func (s *Sync) Async() bool  { return false }

func (s *Sync) Submit(ctx context.Context, t Task) *Future {
	if s.closed.Load() {
		metrics.BackendSubmissions.WithLabelValues(s.name, "cancelled").Inc()
		return Resolved(nil, ErrCancelled)
	}
	if err := ctx.Err(); err != nil {
		return Resolved(nil, err)
	}
	out, err := run(ctx, t)
	metrics.BackendSubmissions.WithLabelValues(s.name, outcome(err)).Inc()
	return Resolved(out, err)
}

func (s *Sync) Shutdown() { s.closed.Store(true) }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
