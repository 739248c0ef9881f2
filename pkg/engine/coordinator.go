package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/docsync/pkg/core"
)

// SaveResult describes a successful write.
type SaveResult struct {
	Path      core.ResourceKey
	Content   string
	Timestamp time.Time
}

// CoordinatorConfig holds the dependencies of a Coordinator.
type CoordinatorConfig struct {
	Path      core.ResourceKey
	Storage   core.Storage
	Delay     time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
	OnSuccess func(SaveResult)
	OnError   func(error)
}

// Coordinator debounces edits of one resource into single writes.
//
// It is a small state machine:
//
//	Saved --edit--> Unsaved --timer--> Saving --ok--> Saved
//	                                   Saving --fail--> Error --edit--> Unsaved
//
// At most one write is in flight at any time. Every timer carries the
// generation it was armed with; Save, SaveNow, Cancel and Close bump the
// generation so a timer that already fired turns into a no-op.
type Coordinator struct {
	path    core.ResourceKey
	storage core.Storage
	delay   time.Duration
	now     func() time.Time
	logger  *slog.Logger

	onSuccess func(SaveResult)
	onError   func(error)

	mu         sync.Mutex
	status     core.SaveStatus
	lastSaved  string
	lastSaveAt time.Time
	pending    *string
	err        error
	revision   uint64

	timer      *time.Timer
	generation uint64

	inflight        chan struct{}
	inflightContent string

	closed bool
}

// NewCoordinator creates a Coordinator seeded with the initially loaded content.
func NewCoordinator(cfg CoordinatorConfig, initial string) *Coordinator {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &Coordinator{
		path:      cfg.Path,
		storage:   cfg.Storage,
		delay:     cfg.Delay,
		now:       cfg.Now,
		logger:    cfg.Logger,
		onSuccess: cfg.OnSuccess,
		onError:   cfg.OnError,
		status:    core.StatusSaved,
		lastSaved: initial,
	}
}

// Path returns the resource the coordinator writes to.
func (c *Coordinator) Path() core.ResourceKey {
	return c.path
}

// Save records an edit and (re)starts the debounce timer.
// Editing back to the content that is (or is about to be) persisted
// drops the pending edit instead of scheduling a write.
func (c *Coordinator) Save(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return core.ErrClosed
	}
	if c.recordEditLocked(content) {
		c.armTimerLocked()
	} else {
		c.stopTimerLocked()
	}
	return nil
}

// recordEditLocked makes content the latest edit. It reports whether the
// edit still has to be written.
func (c *Coordinator) recordEditLocked(content string) bool {
	if content == c.baselineLocked() {
		c.pending = nil
		if c.inflight != nil {
			c.status = core.StatusSaving
		} else {
			c.status = core.StatusSaved
			c.err = nil
		}
		return false
	}

	c.pending = &content
	c.status = core.StatusUnsaved
	c.err = nil
	return true
}

// SaveNow writes content immediately, bypassing the debounce delay.
//
// The content becomes the latest edit before any wait, so a write already
// in flight settles first and only the newest edit is written afterwards.
// A SaveNow overtaken by a later edit writes that edit instead.
func (c *Coordinator) SaveNow(ctx context.Context, content string) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	c.stopTimerLocked()
	c.recordEditLocked(content)

	return c.persistLocked(ctx)
}

// Flush persists the pending edit, if any, and waits for in-flight writes.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.stopTimerLocked()
	return c.persistLocked(ctx)
}

// persistLocked waits for the in-flight write, then writes the latest
// pending edit. The pending content is read and the write is started in
// the same critical section. Called with the lock held; returns with it
// released.
func (c *Coordinator) persistLocked(ctx context.Context) error {
	c.waitIdleLocked(nil)

	if c.pending == nil {
		c.mu.Unlock()
		return nil
	}
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	// An edit that armed a timer while we waited is written now.
	c.stopTimerLocked()

	content := *c.pending
	if content == c.lastSaved {
		c.pending = nil
		c.status = core.StatusSaved
		c.err = nil
		c.mu.Unlock()
		return nil
	}

	res, err := c.writeLocked(ctx, content)
	c.mu.Unlock()

	c.report(res, err)
	return err
}

// Cancel stops the pending timer. Dirty state is kept so the edit can be
// resumed by a later Save, SaveNow or Flush.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// Close cancels the timer and rejects further edits.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.closed = true
}

// Reload replaces the persisted baseline with externally read content.
//
// It is accepted only when nothing local is pending: status Saved, no
// write in flight, and revision unchanged since the caller observed it.
// Reload reports whether the baseline was replaced.
func (c *Coordinator) Reload(content string, revision uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.status != core.StatusSaved || c.inflight != nil || c.pending != nil {
		return false
	}
	if revision != c.revision || content == c.lastSaved {
		return false
	}
	c.lastSaved = content
	c.revision++
	return true
}

// State returns a snapshot of the save state.
func (c *Coordinator) State() core.SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := core.SaveState{
		Status:            c.status,
		LastSavedContent:  c.lastSaved,
		LastSaveTimestamp: c.lastSaveAt,
		Err:               c.err,
		Revision:          c.revision,
	}
	if c.pending != nil {
		p := *c.pending
		state.PendingContent = &p
	}
	return state
}

// baselineLocked is the content that is persisted once the in-flight
// write, if any, succeeds.
func (c *Coordinator) baselineLocked() string {
	if c.inflight != nil {
		return c.inflightContent
	}
	return c.lastSaved
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
}

func (c *Coordinator) armTimerLocked() {
	c.stopTimerLocked()
	gen := c.generation
	c.timer = time.AfterFunc(c.delay, func() {
		c.fire(gen)
	})
}

// fire runs when the debounce timer of generation gen expires.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()

	stale := func() bool { return c.closed || gen != c.generation }
	if stale() {
		c.mu.Unlock()
		return
	}
	c.timer = nil

	if !c.waitIdleLocked(stale) {
		c.mu.Unlock()
		return
	}
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	if *c.pending == c.lastSaved {
		c.pending = nil
		c.status = core.StatusSaved
		c.err = nil
		c.mu.Unlock()
		return
	}

	c.logger.Debug("debounce expired, writing", "path", c.path)
	res, err := c.writeLocked(context.Background(), *c.pending)
	c.mu.Unlock()

	c.report(res, err)
}

// waitIdleLocked blocks until no write is in flight. It drops the lock
// while waiting. It returns false if stale reports true after a wait.
func (c *Coordinator) waitIdleLocked(stale func() bool) bool {
	for c.inflight != nil {
		done := c.inflight
		c.mu.Unlock()
		<-done
		c.mu.Lock()
		if stale != nil && stale() {
			return false
		}
	}
	return true
}

// writeLocked performs the write with the lock released. It must be
// called with the lock held and no write in flight; it returns with the
// lock held.
func (c *Coordinator) writeLocked(ctx context.Context, content string) (SaveResult, error) {
	done := make(chan struct{})
	c.inflight = done
	c.inflightContent = content
	c.status = core.StatusSaving
	c.mu.Unlock()

	werr := c.storage.Write(ctx, string(c.path), content)
	at := c.now()

	c.mu.Lock()
	c.inflight = nil
	c.inflightContent = ""
	close(done)

	if werr != nil {
		err := &core.WriteError{Path: string(c.path), Err: werr}
		if c.pending == nil {
			c.pending = &content
		}
		c.status = core.StatusError
		c.err = err
		return SaveResult{}, err
	}

	c.lastSaved = content
	c.lastSaveAt = at
	c.revision++
	if c.pending != nil && *c.pending == content {
		c.pending = nil
	}
	if c.pending == nil {
		c.status = core.StatusSaved
	} else {
		c.status = core.StatusUnsaved
	}
	c.err = nil

	return SaveResult{Path: c.path, Content: content, Timestamp: at}, nil
}

// report invokes the callbacks. It must be called without the lock.
func (c *Coordinator) report(res SaveResult, err error) {
	if err != nil {
		c.logger.Warn("save failed", "path", c.path, "error", err)
		if c.onError != nil {
			c.onError(err)
		}
		return
	}
	c.logger.Debug("saved", "path", c.path, "bytes", len(res.Content))
	if c.onSuccess != nil {
		c.onSuccess(res)
	}
}
