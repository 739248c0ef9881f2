package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// StorageState exposes internal state for observability.
type StorageState struct {
	Root       string     `json:"root"`
	SystemDir  string     `json:"system_dir"`
	ReadOnly   bool       `json:"read_only"`
	Versioning bool       `json:"versioning"`
	Reads      uint64     `json:"reads"`
	Writes     uint64     `json:"writes"`
	Failures   uint64     `json:"failures"`
	Commits    uint64     `json:"commits"`
	LastWrite  *time.Time `json:"last_write,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Storage) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StorageState{
		Root:       s.root,
		SystemDir:  s.config.SystemDir,
		ReadOnly:   s.config.ReadOnly,
		Versioning: s.git != nil,
		Reads:      s.reads,
		Writes:     s.writes,
		Failures:   s.failures,
		Commits:    s.commits,
		LastWrite:  s.lastWrite,
	}
}

// ComponentType implements introspection.Component.
func (s *Storage) ComponentType() string {
	return "fs-storage"
}

// NotifierState exposes internal state for observability.
type NotifierState struct {
	BatchWindow string       `json:"batch_window"`
	Ignore      []string     `json:"ignore"`
	Watches     []WatchState `json:"watches"`
}

// WatchState is the observable state of one folder watch.
type WatchState struct {
	ID        string     `json:"id"`
	Folder    string     `json:"folder"`
	Active    bool       `json:"active"`
	Since     time.Time  `json:"since"`
	Events    uint64     `json:"events"`
	Bulk      uint64     `json:"bulk_events"`
	Errors    uint64     `json:"errors"`
	Restarts  int64      `json:"restarts"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// State implements introspection.Introspectable.
func (n *Notifier) State() any {
	n.mu.Lock()
	defer n.mu.Unlock()

	watches := make([]WatchState, 0, len(n.watches))
	for _, fw := range n.watches {
		fw.mu.Lock()
		last := fw.lastEvent
		fw.mu.Unlock()

		restarts := fw.restarts.Load() - 1
		if restarts < 0 {
			restarts = 0
		}
		watches = append(watches, WatchState{
			ID:        fw.id,
			Folder:    fw.folder,
			Active:    fw.active.Load(),
			Since:     fw.since,
			Events:    fw.events.Load(),
			Bulk:      fw.bulk.Load(),
			Errors:    fw.errors.Load(),
			Restarts:  restarts,
			LastEvent: last,
		})
	}
	sort.Slice(watches, func(i, j int) bool { return watches[i].Folder < watches[j].Folder })

	return NotifierState{
		BatchWindow: n.config.BatchWindow.String(),
		Ignore:      n.config.Ignore,
		Watches:     watches,
	}
}

// ComponentType implements introspection.Component.
func (n *Notifier) ComponentType() string {
	return "fs-notifier"
}

var _ introspection.Introspectable = (*Storage)(nil)
var _ introspection.Component = (*Storage)(nil)
var _ introspection.Introspectable = (*Notifier)(nil)
var _ introspection.Component = (*Notifier)(nil)
