package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/docsync/pkg/core"
)

// Handler consumes the change events of watched folders.
type Handler func(ctx context.Context, event core.ChangeEvent)

// Registry reference-counts folder subscriptions shared by open documents.
//
// The first registration of a folder starts a Notifier subscription and
// the last unregistration stops it. The lock is held across Watch and
// StopWatch so fast open/close sequences cannot start a folder twice or
// stop it while another document still needs it.
type Registry struct {
	notifier core.Notifier
	handler  Handler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	folders map[string]*registration
}

type registration struct {
	folder   string
	id       string
	refCount int
	active   bool
	cancel   context.CancelFunc
}

// NewRegistry creates a Registry that dispatches events to handler.
// A nil notifier disables watching: registrations are counted but never active.
func NewRegistry(notifier core.Notifier, handler Handler, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = discardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		notifier: notifier,
		handler:  handler,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		folders:  make(map[string]*registration),
	}
}

// WatchID derives the deterministic subscription identifier of a folder.
func WatchID(folder string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(folder)))
	return "watch-" + hex.EncodeToString(sum[:8])
}

// RegisterFolder takes a reference on folder, starting its subscription on
// the first reference. A failed start is logged; the next RegisterFolder
// for the same folder retries it.
func (r *Registry) RegisterFolder(ctx context.Context, folder string) {
	folder = filepath.Clean(folder)

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.folders[folder]
	if !ok {
		reg = &registration{folder: folder, id: WatchID(folder)}
		r.folders[folder] = reg
	}
	reg.refCount++

	if !reg.active {
		r.startLocked(ctx, reg)
	}
}

// UnregisterFolder releases a reference on folder, stopping its
// subscription when the last reference is gone.
func (r *Registry) UnregisterFolder(ctx context.Context, folder string) {
	folder = filepath.Clean(folder)

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.folders[folder]
	if !ok {
		r.logger.Debug("unregister of unknown folder ignored", "folder", folder)
		return
	}
	reg.refCount--
	if reg.refCount > 0 {
		return
	}
	r.stopLocked(ctx, reg)
	delete(r.folders, folder)
}

// Registrations returns a snapshot of all registrations sorted by folder.
func (r *Registry) Registrations() []core.WatchRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.WatchRegistration, 0, len(r.folders))
	for _, reg := range r.folders {
		out = append(out, core.WatchRegistration{
			Folder:   reg.folder,
			ID:       reg.id,
			RefCount: reg.refCount,
			Active:   reg.active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Folder < out[j].Folder })
	return out
}

// Close stops every subscription regardless of reference counts.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for folder, reg := range r.folders {
		r.stopLocked(ctx, reg)
		delete(r.folders, folder)
	}
	r.cancel()
}

func (r *Registry) startLocked(ctx context.Context, reg *registration) {
	if r.notifier == nil {
		return
	}

	events, err := r.notifier.Watch(ctx, reg.id, reg.folder)
	if err != nil {
		r.logger.Warn("watch start failed, folder will not be reconciled",
			"folder", reg.folder, "id", reg.id, "error", err)
		return
	}

	pumpCtx, cancel := context.WithCancel(r.ctx)
	reg.active = true
	reg.cancel = cancel

	r.logger.Debug("watch started", "folder", reg.folder, "id", reg.id)

	lifecycle.Go(pumpCtx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if r.handler != nil {
					r.handler(ctx, event)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		r.logger.Error("event pump failed", "folder", reg.folder, "error", err)
	}))
}

func (r *Registry) stopLocked(ctx context.Context, reg *registration) {
	if !reg.active {
		return
	}
	reg.cancel()
	reg.active = false

	if err := r.notifier.StopWatch(ctx, reg.id); err != nil {
		r.logger.Warn("watch stop failed", "folder", reg.folder, "id", reg.id, "error", err)
		return
	}
	r.logger.Debug("watch stopped", "folder", reg.folder, "id", reg.id)
}
