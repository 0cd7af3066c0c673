package engine

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCancelled is returned for work aborted by a backend shutdown.
	ErrCancelled = errors.New("engine: execution cancelled")
	// ErrUnknownBackend is returned by Get for an unregistered backend name.
	ErrUnknownBackend = errors.New("engine: unknown backend")
)

// Task is the unit of work handed to an Executor.
type Task func(ctx context.Context) ([]any, error)

// Future is the pending result of a submitted Task. It resolves exactly once.
type Future struct {
	done chan struct{}
	once sync.Once
	out  []any
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns an already completed Future.
func Resolved(out []any, err error) *Future {
	f := newFuture()
	f.resolve(out, err)
	return f
}

func (f *Future) resolve(out []any, err error) bool {
	first := false
	f.once.Do(func() {
		f.out, f.err = out, err
		close(f.done)
		first = true
	})
	return first
}

func (f *Future) isResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends.
func (f *Future) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run executes t and converts a panic into an error.
func run(ctx context.Context, t Task) (out []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t(ctx)
}

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "engine: task panicked: " + stringify(e.Value)
}

func stringify(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	}
	return "non-error value"
}
