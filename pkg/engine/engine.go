// Package engine implements document synchronization: debounced saves,
// reference-counted folder watches and reconciliation of external changes.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/docsync/pkg/core"
)

const (
	// DefaultDebounce is the delay between the last edit and its write.
	DefaultDebounce = 1000 * time.Millisecond

	// DefaultProtectionWindow is how long after a save change notifications
	// for the same resource are treated as its echo.
	DefaultProtectionWindow = 2000 * time.Millisecond
)

// Config holds the configuration for an Engine.
type Config struct {
	Debounce         time.Duration
	ProtectionWindow time.Duration
	Logger           *slog.Logger
	Now              func() time.Time // defaults to time.Now

	// Root resolves relative document paths. Empty means the working directory.
	Root string
}

// Engine owns the shared pieces of synchronization (storage, watch
// registry, reconciler) and opens document sessions on top of them.
type Engine struct {
	storage    core.Storage
	notifier   core.Notifier
	registry   *Registry
	reconciler *Reconciler
	config     Config

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// New creates an Engine. A nil notifier disables reconciliation.
func New(storage core.Storage, notifier core.Notifier, config Config) *Engine {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.ProtectionWindow <= 0 {
		config.ProtectionWindow = DefaultProtectionWindow
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = discardLogger()
	}

	e := &Engine{
		storage:  storage,
		notifier: notifier,
		config:   config,
		sessions: make(map[*Session]struct{}),
	}
	e.reconciler = NewReconciler(storage, config.ProtectionWindow, config.Now, config.Logger)
	e.registry = NewRegistry(notifier, func(ctx context.Context, event core.ChangeEvent) {
		e.reconciler.HandleEvent(ctx, event)
	}, config.Logger)
	return e
}

// Registry exposes the watch registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Reconciler exposes the reconciler.
func (e *Engine) Reconciler() *Reconciler {
	return e.reconciler
}

// Root returns the directory relative document paths are resolved against.
func (e *Engine) Root() string {
	return e.config.Root
}

// Storage returns the storage the engine reads from and writes to.
func (e *Engine) Storage() core.Storage {
	return e.storage
}

// Notifier returns the change notifier, or nil when watching is disabled.
func (e *Engine) Notifier() core.Notifier {
	return e.notifier
}

// Open starts a session on path.
func (e *Engine) Open(ctx context.Context, path string, opts ...SessionOption) (*Session, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, core.ErrClosed
	}
	e.mu.Unlock()

	s := &Session{engine: e}
	for _, opt := range opts {
		opt(&s.opts)
	}

	res, content, err := e.establish(ctx, s, path)
	if err != nil {
		return nil, err
	}
	s.res = res
	s.content = content

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	return s, nil
}

// Sessions returns the open sessions.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		out = append(out, s)
	}
	return out
}

// Close flushes and closes every session, then stops all watches and the
// notifier, if it can be closed. Sessions whose flush fails stay open and
// their errors are returned.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	var errs []error
	for _, s := range e.Sessions() {
		if err := s.Close(ctx); err != nil && !errors.Is(err, core.ErrNotOpen) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.registry.Close(ctx)
	if closer, ok := e.notifier.(interface{ Close(context.Context) error }); ok {
		return closer.Close(ctx)
	}
	return nil
}

// establish performs the initial load of path and wires the new resource
// into the registry and reconciler.
func (e *Engine) establish(ctx context.Context, s *Session, path string) (*resource, string, error) {
	if path != "" && !filepath.IsAbs(path) && e.config.Root != "" {
		path = filepath.Join(e.config.Root, path)
	}
	key, err := core.NewResourceKey(path)
	if err != nil {
		return nil, "", err
	}

	content, err := e.storage.Read(ctx, string(key))
	if err != nil {
		return nil, "", &core.ReadError{Path: string(key), Err: err}
	}

	res := &resource{session: s, key: key}
	res.coord = NewCoordinator(CoordinatorConfig{
		Path:    key,
		Storage: e.storage,
		Delay:   e.config.Debounce,
		Now:     e.config.Now,
		Logger:  e.config.Logger,
		OnSuccess: func(r SaveResult) {
			if s.opts.onSaveSuccess != nil {
				s.opts.onSaveSuccess(r)
			}
		},
		OnError: func(err error) {
			if s.opts.onSaveError != nil {
				s.opts.onSaveError(err)
			}
		},
	}, content)

	e.registry.RegisterFolder(ctx, key.Folder())
	res.unsubscribe = e.reconciler.Subscribe(res)

	e.config.Logger.Debug("document opened", "path", key)
	return res, content, nil
}

// release undoes establish. The coordinator must already be closed.
func (e *Engine) release(ctx context.Context, res *resource) {
	res.unsubscribe()
	e.registry.UnregisterFolder(ctx, res.key.Folder())
	e.config.Logger.Debug("document released", "path", res.key)
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
