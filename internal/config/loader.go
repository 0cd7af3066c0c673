package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML graph definition and watches it for changes.
type Loader struct {
	path     string
	log      *slog.Logger
	mu       sync.RWMutex
	current  *GraphDef
	onChange []func(*GraphDef)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string, log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{path: path, log: log}
	def, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = def
	return l, nil
}

// Definition returns the current (latest) definition.
func (l *Loader) Definition() *GraphDef {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the definition reloads.
func (l *Loader) OnChange(fn func(*GraphDef)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the definition on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("definition watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("definition watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						// Keep serving the previous definition.
						l.log.Warn("definition reload failed", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn("definition watcher error", "path", l.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the definition file.
func (l *Loader) Reload() (*GraphDef, error) {
	def, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = def
	callbacks := make([]func(*GraphDef), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	l.log.Info("definition loaded", "path", l.path, "graph", def.Name, "nodes", len(def.Nodes))
	for _, fn := range callbacks {
		fn(def)
	}
	return def, nil
}

func (l *Loader) load() (*GraphDef, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", l.path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", l.path, err)
	}
	return def, nil
}

// Parse decodes and validates a YAML graph definition.
func Parse(data []byte) (*GraphDef, error) {
	var def GraphDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}
