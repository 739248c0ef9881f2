package docsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/docsync/internal/platform"
	"github.com/aretw0/docsync/pkg/core"
	"github.com/aretw0/docsync/pkg/engine"
	"github.com/aretw0/docsync/pkg/git"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Engine owns the open documents of a workspace.
type Engine = engine.Engine

// Session is one open document.
type Session = engine.Session

// SessionOption configures a Session.
type SessionOption = engine.SessionOption

// SaveResult describes a successful write.
type SaveResult = engine.SaveResult

// ReloadEvent describes content replaced by an external change.
type ReloadEvent = engine.ReloadEvent

// SaveState is the persistence state of an open document.
type SaveState = core.SaveState

// SaveStatus is the persistence status of an open document.
type SaveStatus = core.SaveStatus

// Save statuses.
const (
	StatusSaved   = core.StatusSaved
	StatusSaving  = core.StatusSaving
	StatusUnsaved = core.StatusUnsaved
	StatusError   = core.StatusError
)

// Errors returned by sessions and storage.
var (
	ErrReadOnly  = core.ErrReadOnly
	ErrClosed    = core.ErrClosed
	ErrNotOpen   = core.ErrNotOpen
	ErrEmptyPath = core.ErrEmptyPath
)

// ReadError reports a failed read of a document.
type ReadError = core.ReadError

// WriteError reports a failed write of a document.
type WriteError = core.WriteError

// --- Session callbacks ---

// OnSaveSuccess registers a callback invoked after every successful write.
func OnSaveSuccess(fn func(SaveResult)) SessionOption {
	return engine.OnSaveSuccess(fn)
}

// OnSaveError registers a callback invoked after every failed write.
func OnSaveError(fn func(error)) SessionOption {
	return engine.OnSaveError(fn)
}

// OnReload registers a callback invoked when an external change replaced
// the displayed content.
func OnReload(fn func(ReloadEvent)) SessionOption {
	return engine.OnReload(fn)
}

// --- Configuration ---

// Option defines a functional option for configuring docsync.
type Option = platform.Option

// WithLogger sets the logger for the engine and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithDebounce sets the delay between the last edit and its write.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithProtectionWindow sets how long after a save change notifications are
// treated as the echo of that save.
func WithProtectionWindow(d time.Duration) Option {
	return platform.WithProtectionWindow(d)
}

// WithStorage allows injecting a custom storage adapter.
func WithStorage(storage core.Storage) Option {
	return platform.WithStorage(storage)
}

// WithNotifier allows injecting a custom notifier. Nil disables watching.
func WithNotifier(notifier core.Notifier) Option {
	return platform.WithNotifier(notifier)
}

// WithVersioning enables or disables committing every write to git.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithIgnorePatterns replaces the patterns of files whose changes are not reported.
func WithIgnorePatterns(patterns ...string) Option {
	return platform.WithIgnorePatterns(patterns...)
}

// WithEventBuffer sets the capacity of each folder subscription channel.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithBatchWindow sets how long filesystem events are collected per notification.
func WithBatchWindow(d time.Duration) Option {
	return platform.WithBatchWindow(d)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithAutoInit creates the workspace (and git repository, when versioning) if missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".docsync").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// LoadConfig reads a docsync.yaml file into options.
// A missing file yields no options.
func LoadConfig(path string) ([]Option, error) {
	return platform.LoadConfig(path)
}

// ConfigFileName is the workspace configuration file.
const ConfigFileName = platform.ConfigFileName

// --- Factory ---

// New creates a docsync engine for the workspace at root.
func New(root string, opts ...Option) (*Engine, error) {
	return platform.New(root, opts...)
}

// --- Safety & Utils ---

// ResolveWorkspacePath determines the actual workspace path based on safety rules.
func ResolveWorkspacePath(userPath string, forceTemp bool) string {
	return platform.ResolveWorkspacePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a workspace root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// --- Change reasons ---

const (
	CommitTypeFeat     = git.CommitTypeFeat
	CommitTypeFix      = git.CommitTypeFix
	CommitTypeDocs     = git.CommitTypeDocs
	CommitTypeStyle    = git.CommitTypeStyle
	CommitTypeRefactor = git.CommitTypeRefactor
	CommitTypeChore    = git.CommitTypeChore
)

// FormatChangeReason builds a Conventional Commit message.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return git.FormatCommitMessage(ctype, scope, subject, body)
}

// AppendFooter appends the docsync footer to an arbitrary message.
func AppendFooter(msg string) string {
	return git.AppendFooter(msg)
}

// WithChangeReason attaches a commit message to the context of a write.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return core.WithChangeReason(ctx, reason)
}
