// Package core holds the domain types and ports of the synchronization engine.
package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ResourceKey is the absolute, cleaned path identifying one open document.
type ResourceKey string

// NewResourceKey normalizes a path into a ResourceKey.
// Relative paths are resolved against the working directory.
func NewResourceKey(path string) (ResourceKey, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return ResourceKey(filepath.Clean(abs)), nil
}

// Folder returns the directory containing the resource.
func (k ResourceKey) Folder() string {
	return filepath.Dir(string(k))
}

func (k ResourceKey) String() string {
	return string(k)
}

// SaveStatus is the persistence status of an open document.
type SaveStatus int

const (
	StatusSaved SaveStatus = iota
	StatusSaving
	StatusUnsaved
	StatusError
)

func (s SaveStatus) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSaving:
		return "saving"
	case StatusUnsaved:
		return "unsaved"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SaveState is a snapshot of the persistence state of one document.
//
// PendingContent is non-nil while the status is Unsaved, Saving or Error:
// a failed write keeps the edit around so a later save can retry it.
// LastSavedContent always matches the last successful write, the initial
// load, or an accepted reload.
type SaveState struct {
	Status            SaveStatus
	LastSavedContent  string
	LastSaveTimestamp time.Time // zero until the first successful write
	PendingContent    *string
	Err               error

	// Revision increments every time LastSavedContent changes.
	Revision uint64
}

// Dirty reports whether the state holds content that is not persisted yet.
func (s SaveState) Dirty() bool {
	return s.PendingContent != nil
}

// ChangeEvent is a single notification batch for a watched folder.
// An empty Paths slice means "something changed, details unknown".
type ChangeEvent struct {
	Folder string
	Paths  []string
}

// IsBulk reports whether the event carries no specific paths.
func (e ChangeEvent) IsBulk() bool {
	return len(e.Paths) == 0
}

// String names the folder and the base names of the changed files.
func (e ChangeEvent) String() string {
	if e.IsBulk() {
		return fmt.Sprintf("%s: bulk change", e.Folder)
	}
	names := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		names[i] = filepath.Base(p)
	}
	return fmt.Sprintf("%s: %s", e.Folder, strings.Join(names, ", "))
}

// Contains reports whether path is named by the event.
// Bulk events contain every path of their folder.
func (e ChangeEvent) Contains(path string) bool {
	if e.IsBulk() {
		return filepath.Dir(filepath.Clean(path)) == filepath.Clean(e.Folder)
	}
	clean := filepath.Clean(path)
	for _, p := range e.Paths {
		if filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}

// WatchRegistration describes the reference-counted subscription of a folder.
type WatchRegistration struct {
	Folder   string `json:"folder"`
	ID       string `json:"id"`
	RefCount int    `json:"ref_count"`
	Active   bool   `json:"active"`
}
