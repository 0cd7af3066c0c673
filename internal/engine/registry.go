package engine

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// Factory creates a fresh executor instance for a registered name.
type Factory func(name string) Executor

// Backend names registered by default.
const (
	SyncBackend = "sync"
	PoolBackend = "pool"
)

// registry is the process-wide backend lifecycle table. Executors are created
// lazily by Get and dropped by Shutdown; a later Get creates a new instance.
var registry = struct {
	mu        sync.Mutex
	factories map[string]Factory
	live      map[string]Executor
}{
	factories: map[string]Factory{
		SyncBackend: func(name string) Executor { return NewSync(name) },
		PoolBackend: func(name string) Executor {
			n := runtime.NumCPU()
			return NewPool(name, n, n*10)
		},
	},
	live: make(map[string]Executor),
}

// Register installs factory under name. A live executor previously created
// under that name is shut down so the next Get uses the new factory.
func Register(name string, factory Factory) {
	registry.mu.Lock()
	old := registry.live[name]
	delete(registry.live, name)
	registry.factories[name] = factory
	registry.mu.Unlock()
	if old != nil {
		old.Shutdown()
	}
}

// Get returns the live executor registered under name, creating it if needed.
// An empty name selects the synchronous backend.
func Get(name string) (Executor, error) {
	if name == "" {
		name = SyncBackend
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if ex, ok := registry.live[name]; ok {
		return ex, nil
	}
	factory, ok := registry.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	ex := factory(name)
	registry.live[name] = ex
	return ex, nil
}

// Shutdown shuts down the named live executors, or all of them when no name
// is given. Unknown or already stopped names are ignored.
func Shutdown(names ...string) {
	registry.mu.Lock()
	if len(names) == 0 {
		for name := range registry.live {
			names = append(names, name)
		}
	}
	var stopped []Executor
	for _, name := range names {
		if ex, ok := registry.live[name]; ok {
			stopped = append(stopped, ex)
			delete(registry.live, name)
		}
	}
	registry.mu.Unlock()
	for _, ex := range stopped {
		ex.Shutdown()
	}
}

// Names returns all registered backend names.
func Names() []string {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]string, 0, len(registry.factories))
	for k := range registry.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Utilization reports the queue fill ratio of the live pool backend
// registered under name. It does not create the backend.
func Utilization(name string) (float64, bool) {
	registry.mu.Lock()
	ex := registry.live[name]
	registry.mu.Unlock()
	p, ok := ex.(*Pool)
	if !ok {
		return 0, false
	}
	return p.utilization(), true
}
