// Package watch keeps a notation registry in step with its configuration
// file. Readers always see a complete registry; a configuration that fails
// to load or build leaves the previous one in place.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/pratt/config"
	"github.com/sambeau/pratt/pkg/pratt/calc"
	"github.com/sambeau/pratt/pkg/pratt/registry"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// State is one loaded generation of the configuration.
type State struct {
	Config     *config.Config
	Registry   *registry.Registry
	Path       string // resolved config file, empty when defaults are in use
	Generation uint64
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the logger for reload records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// OnReload registers fn to be called after every reload attempt triggered by
// the watcher. err is nil when st is the newly published state.
func OnReload(fn func(st *State, err error)) Option {
	return func(r *Reloader) {
		r.onReload = fn
	}
}

// Reloader publishes the current State through an atomic pointer.
type Reloader struct {
	configPath string
	getenv     func(string) string
	logger     *slog.Logger
	debounce   time.Duration
	onReload   func(*State, error)

	current atomic.Pointer[State]
	mu      sync.Mutex // serialises reloads
}

// New loads the configuration once. configPath may be empty, in which case
// the usual search order applies.
func New(configPath string, getenv func(string) string, opts ...Option) (*Reloader, error) {
	r := &Reloader{
		configPath: configPath,
		getenv:     getenv,
		logger:     slog.New(slog.DiscardHandler),
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the latest successfully loaded state.
func (r *Reloader) Current() *State {
	return r.current.Load()
}

// Registry returns the current registry.
func (r *Reloader) Registry() *registry.Registry {
	return r.current.Load().Registry
}

// Reload rebuilds the registry from the configuration file. On failure the
// current state is kept and the error returned.
func (r *Reloader) Reload() (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, path, err := config.LoadWithPath(r.configPath, r.getenv)
	if err != nil {
		r.logger.Error("config reload failed", "error", err)
		return nil, err
	}
	reg, err := calc.Build(cfg.Notations)
	if err != nil {
		err = fmt.Errorf("failed to build grammar: %w", err)
		r.logger.Error("config reload failed", "path", path, "error", err)
		return nil, err
	}

	var gen uint64 = 1
	if prev := r.current.Load(); prev != nil {
		gen = prev.Generation + 1
	}
	st := &State{Config: cfg, Registry: reg, Path: path, Generation: gen}
	r.current.Store(st)

	// Pin the file we found so later reloads follow it rather than
	// searching again.
	if r.configPath == "" && path != "" {
		r.configPath = path
	}

	r.logger.Info("config loaded", "path", path, "notations", len(cfg.Notations), "generation", gen)
	for _, w := range config.Warnings(cfg) {
		r.logger.Warn(w, "path", path)
	}
	return st, nil
}

// Watch follows changes to the configuration file until ctx is done.
// It returns an error if there is no file to watch.
func (r *Reloader) Watch(ctx context.Context) error {
	path := r.Current().Path
	if path == "" {
		return errors.New("no configuration file to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsWatcher.Close()

	// Watch the directory: editors often replace the file rather than write it.
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config dir %s: %w", dir, err)
	}
	r.logger.Info("watching config", "path", path)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			settle = time.After(r.debounce)

		case <-settle:
			settle = nil
			st, err := r.Reload()
			if r.onReload != nil {
				r.onReload(st, err)
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watcher error", "error", err)
		}
	}
}
