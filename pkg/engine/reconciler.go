package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/docsync/pkg/core"
)

// Subscriber is an open resource the Reconciler may reload.
type Subscriber interface {
	Key() core.ResourceKey
	State() core.SaveState

	// Reload offers freshly read content observed at revision. It reports
	// whether the content was taken.
	Reload(content string, revision uint64) bool
}

// Outcome is the decision taken for one resource named by a change event.
type Outcome int

const (
	OutcomeReloaded Outcome = iota
	OutcomeSkippedDirty
	OutcomeSkippedEcho
	OutcomeUnchanged
	OutcomeReadFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReloaded:
		return "reloaded"
	case OutcomeSkippedDirty:
		return "skipped_dirty"
	case OutcomeSkippedEcho:
		return "skipped_echo"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// ReconcileStats counts reconciliation decisions.
type ReconcileStats struct {
	Events       uint64 `json:"events"`
	Reloads      uint64 `json:"reloads"`
	SkippedDirty uint64 `json:"skipped_dirty"`
	SkippedEcho  uint64 `json:"skipped_echo"`
	Unchanged    uint64 `json:"unchanged"`
	ReadFailures uint64 `json:"read_failures"`
}

// Reconciler decides, per change event, whether open resources are
// reloaded from storage.
//
// A resource is left alone while it has local edits, and during the
// protection window after its own last save, since the notification is
// most likely the echo of that save. The window is a heuristic: an
// external write landing inside it is not picked up.
type Reconciler struct {
	storage core.Storage
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}

	events       atomic.Uint64
	reloads      atomic.Uint64
	skippedDirty atomic.Uint64
	skippedEcho  atomic.Uint64
	unchanged    atomic.Uint64
	readFailures atomic.Uint64
}

// NewReconciler creates a Reconciler reading from storage.
func NewReconciler(storage core.Storage, window time.Duration, now func() time.Time, logger *slog.Logger) *Reconciler {
	if window < 0 {
		window = 0
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Reconciler{
		storage: storage,
		window:  window,
		now:     now,
		logger:  logger,
		subs:    make(map[string]map[Subscriber]struct{}),
	}
}

// Subscribe makes sub eligible for reloads. The returned function removes it.
func (r *Reconciler) Subscribe(sub Subscriber) (unsubscribe func()) {
	folder := sub.Key().Folder()

	r.mu.Lock()
	set, ok := r.subs[folder]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.subs[folder] = set
	}
	set[sub] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.subs[folder]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(r.subs, folder)
				}
			}
		})
	}
}

// HandleEvent reconciles every subscribed resource named by event.
// It returns the decision per resource.
func (r *Reconciler) HandleEvent(ctx context.Context, event core.ChangeEvent) map[core.ResourceKey]Outcome {
	r.events.Add(1)

	folder := filepath.Clean(event.Folder)

	r.mu.RLock()
	var targets []Subscriber
	for sub := range r.subs[folder] {
		if event.Contains(string(sub.Key())) {
			targets = append(targets, sub)
		}
	}
	r.mu.RUnlock()

	outcomes := make(map[core.ResourceKey]Outcome, len(targets))
	for _, sub := range targets {
		outcomes[sub.Key()] = r.reconcile(ctx, sub)
	}
	return outcomes
}

func (r *Reconciler) reconcile(ctx context.Context, sub Subscriber) Outcome {
	key := sub.Key()
	state := sub.State()

	if state.Status != core.StatusSaved {
		r.skippedDirty.Add(1)
		r.logger.Debug("reconcile skipped, local edits pending", "path", key, "status", state.Status)
		return OutcomeSkippedDirty
	}
	if !state.LastSaveTimestamp.IsZero() && r.now().Sub(state.LastSaveTimestamp) < r.window {
		r.skippedEcho.Add(1)
		r.logger.Debug("reconcile skipped, inside protection window", "path", key)
		return OutcomeSkippedEcho
	}

	content, err := r.storage.Read(ctx, string(key))
	if err != nil {
		r.readFailures.Add(1)
		r.logger.Warn("reconcile read failed, keeping current content", "path", key, "error", err)
		return OutcomeReadFailed
	}

	if !sub.Reload(content, state.Revision) {
		r.unchanged.Add(1)
		return OutcomeUnchanged
	}

	r.reloads.Add(1)
	r.logger.Info("reloaded external change", "path", key)
	return OutcomeReloaded
}

// Stats returns the decision counters.
func (r *Reconciler) Stats() ReconcileStats {
	return ReconcileStats{
		Events:       r.events.Load(),
		Reloads:      r.reloads.Load(),
		SkippedDirty: r.skippedDirty.Load(),
		SkippedEcho:  r.skippedEcho.Load(),
		Unchanged:    r.unchanged.Load(),
		ReadFailures: r.readFailures.Load(),
	}
}
