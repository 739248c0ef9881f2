package engine

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/docsync/pkg/core"
)

// ReloadEvent tells the view layer that displayed content was replaced by
// an external change.
type ReloadEvent struct {
	Path    core.ResourceKey
	Content string
	At      time.Time
}

type sessionOptions struct {
	onSaveSuccess func(SaveResult)
	onSaveError   func(error)
	onReload      func(ReloadEvent)
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// OnSaveSuccess registers a callback invoked after every successful write.
func OnSaveSuccess(fn func(SaveResult)) SessionOption {
	return func(o *sessionOptions) {
		o.onSaveSuccess = fn
	}
}

// OnSaveError registers a callback invoked after every failed write.
func OnSaveError(fn func(error)) SessionOption {
	return func(o *sessionOptions) {
		o.onSaveError = fn
	}
}

// OnReload registers a callback invoked when an external change replaced
// the displayed content.
func OnReload(fn func(ReloadEvent)) SessionOption {
	return func(o *sessionOptions) {
		o.onReload = fn
	}
}

// Session binds one open document to its coordinator, reconciler
// subscription and folder watch.
//
// Switching or closing flushes pending edits first. When the flush fails
// the session stays on the current document and the error is returned;
// Discard is the explicit way to drop unsaved edits.
type Session struct {
	engine *Engine
	opts   sessionOptions

	// life serializes Switch, Close and Discard.
	life sync.Mutex

	mu      sync.Mutex
	res     *resource
	content string
	closed  bool
}

// resource is one document opened by a session. A switch replaces it
// wholesale, so nothing leaks from one document to the next.
type resource struct {
	session     *Session
	key         core.ResourceKey
	coord       *Coordinator
	unsubscribe func()
}

func (r *resource) Key() core.ResourceKey {
	return r.key
}

func (r *resource) State() core.SaveState {
	return r.coord.State()
}

func (r *resource) Reload(content string, revision uint64) bool {
	return r.session.reload(r, content, revision)
}

// Path returns the open document, or "" once closed.
func (s *Session) Path() core.ResourceKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res == nil {
		return ""
	}
	return s.res.key
}

// Content returns the displayed content.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// State returns the save state of the open document.
func (s *Session) State() core.SaveState {
	s.mu.Lock()
	res := s.res
	s.mu.Unlock()
	if res == nil {
		return core.SaveState{}
	}
	return res.coord.State()
}

// Save records an edit; it is written once edits pause for the debounce delay.
func (s *Session) Save(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.res == nil {
		return core.ErrNotOpen
	}
	if err := s.res.coord.Save(content); err != nil {
		return err
	}
	s.content = content
	return nil
}

// SaveNow writes content immediately.
func (s *Session) SaveNow(ctx context.Context, content string) error {
	s.mu.Lock()
	res := s.res
	if res == nil {
		s.mu.Unlock()
		return core.ErrNotOpen
	}
	// Mark the edit under the session lock so a concurrent reload cannot
	// replace the displayed content before the write starts.
	if err := res.coord.Save(content); err != nil {
		s.mu.Unlock()
		return err
	}
	s.content = content
	s.mu.Unlock()

	return res.coord.SaveNow(ctx, content)
}

// Cancel stops the pending debounce timer without dropping the edit.
func (s *Session) Cancel() {
	s.mu.Lock()
	res := s.res
	s.mu.Unlock()
	if res != nil {
		res.coord.Cancel()
	}
}

// Switch flushes the current document, tears it down and opens path.
// If opening path fails the session ends up closed.
func (s *Session) Switch(ctx context.Context, path string) error {
	s.life.Lock()
	defer s.life.Unlock()

	old, err := s.detach(ctx)
	if err != nil {
		return err
	}
	s.engine.release(ctx, old)

	res, content, err := s.engine.establish(ctx, s, path)
	if err != nil {
		s.mu.Lock()
		s.closed = true
		s.content = ""
		s.mu.Unlock()
		s.engine.forget(s)
		return err
	}

	s.mu.Lock()
	s.res = res
	s.content = content
	s.mu.Unlock()
	return nil
}

// Close flushes and tears down the session.
func (s *Session) Close(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()

	old, err := s.detach(ctx)
	if err != nil {
		return err
	}
	s.engine.release(ctx, old)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.engine.forget(s)
	return nil
}

// Discard tears the session down without writing. It returns the unsaved
// content and whether there was any.
func (s *Session) Discard(ctx context.Context) (string, bool) {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	res := s.res
	if res == nil {
		s.mu.Unlock()
		return "", false
	}
	state := res.coord.State()
	res.coord.Close()
	s.res = nil
	s.closed = true
	s.mu.Unlock()

	s.engine.release(ctx, res)
	s.engine.forget(s)

	if state.PendingContent == nil {
		return "", false
	}
	s.engine.config.Logger.Warn("unsaved changes discarded", "path", res.key)
	return *state.PendingContent, true
}

// Closed reports whether the session was closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// detach flushes the current resource and removes it from the session.
// Edits racing with the flush are flushed too; the resource is only
// detached once it is clean, under the session lock.
func (s *Session) detach(ctx context.Context) (*resource, error) {
	for {
		s.mu.Lock()
		res := s.res
		s.mu.Unlock()
		if res == nil {
			return nil, core.ErrNotOpen
		}

		if err := res.coord.Flush(ctx); err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.res != res {
			s.mu.Unlock()
			continue
		}
		if !res.coord.State().Dirty() {
			res.coord.Close()
			s.res = nil
			s.mu.Unlock()
			return res, nil
		}
		s.mu.Unlock()
	}
}

// reload applies reconciled content if res is still the open document.
func (s *Session) reload(res *resource, content string, revision uint64) bool {
	s.mu.Lock()
	if s.res != res {
		s.mu.Unlock()
		return false
	}
	if !res.coord.Reload(content, revision) {
		s.mu.Unlock()
		return false
	}
	s.content = content
	s.mu.Unlock()

	if s.opts.onReload != nil {
		s.opts.onReload(ReloadEvent{Path: res.key, Content: content, At: s.engine.config.Now()})
	}
	return true
}
