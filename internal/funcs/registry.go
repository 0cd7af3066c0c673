// Package funcs holds the named functions graph definitions refer to.
package funcs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
)

// ErrUnknownFunction is returned by Lookup for an unregistered name.
var ErrUnknownFunction = errors.New("unknown function")

// Registry maps function names to callables.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]dag.Func
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]dag.Func)}
}

// Builtins creates a Registry holding the builtin functions.
func Builtins() *Registry {
	r := NewRegistry()
	for _, b := range builtins() {
		r.Register(b.name, b)
	}
	return r
}

// Register adds a function. Panics on duplicate names to surface misconfiguration early.
func (r *Registry) Register(name string, fn dag.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("function registry: duplicate name %q", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (dag.Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFunction, name)
	}
	return fn, nil
}

// Formula compiles expr into a function of the named inputs.
func (r *Registry) Formula(expr string, inputs []string) (dag.Func, error) {
	return NewFormula(expr, inputs)
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
