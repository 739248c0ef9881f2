package engine

import (
	"sort"

	"github.com/aretw0/introspection"

	"github.com/aretw0/docsync/pkg/core"
)

// EngineState exposes internal state for observability.
type EngineState struct {
	Debounce         string                   `json:"debounce"`
	ProtectionWindow string                   `json:"protection_window"`
	Closed           bool                     `json:"closed"`
	Sessions         []SessionState           `json:"sessions"`
	Watches          []core.WatchRegistration `json:"watches"`
	Reconcile        ReconcileStats           `json:"reconcile"`
	StorageType      string                   `json:"storage_type"`
}

// SessionState is the observable state of one open document.
type SessionState struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Dirty  bool   `json:"dirty"`
	Error  string `json:"error,omitempty"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	sessions := make([]SessionState, 0)
	for _, s := range e.Sessions() {
		path := s.Path()
		if path == "" {
			continue
		}
		st := s.State()
		ss := SessionState{
			Path:   string(path),
			Status: st.Status.String(),
			Dirty:  st.Dirty(),
		}
		if st.Err != nil {
			ss.Error = st.Err.Error()
		}
		sessions = append(sessions, ss)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Path < sessions[j].Path })

	storageType := "storage"
	if comp, ok := e.storage.(introspection.Component); ok {
		storageType = comp.ComponentType()
	}

	return EngineState{
		Debounce:         e.config.Debounce.String(),
		ProtectionWindow: e.config.ProtectionWindow.String(),
		Closed:           closed,
		Sessions:         sessions,
		Watches:          e.registry.Registrations(),
		Reconcile:        e.reconciler.Stats(),
		StorageType:      storageType,
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	return r.Registrations()
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "watch-registry"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
var _ introspection.Introspectable = (*Registry)(nil)
var _ introspection.Component = (*Registry)(nil)
