package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/docsync/pkg/core"
)

// options holds the internal configuration for the docsync engine.
type options struct {
	storage  core.Storage
	notifier core.Notifier
	noWatch  bool
	logger   *slog.Logger
	config   map[string]interface{}
}

// Option defines a functional option for configuring docsync.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		config: make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the engine and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDebounce sets the delay between the last edit and its write.
// Zero means default (1s).
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.config["debounce"] = d
	}
}

// WithProtectionWindow sets how long after a save change notifications are
// treated as the echo of that save. Zero means default (2s).
func WithProtectionWindow(d time.Duration) Option {
	return func(o *options) {
		o.config["protection_window"] = d
	}
}

// WithStorage allows injecting a custom storage adapter (e.g. memory, remote).
// If provided, the default filesystem storage is skipped.
func WithStorage(storage core.Storage) Option {
	return func(o *options) {
		o.storage = storage
	}
}

// WithNotifier allows injecting a custom notifier. Passing nil disables
// change notifications entirely.
func WithNotifier(notifier core.Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
		o.noWatch = notifier == nil
	}
}

// WithVersioning enables or disables committing every write to git.
// By default versioning follows the workspace: on if it is a git repository.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["versioning"] = enabled
	}
}

// WithIgnorePatterns replaces the doublestar patterns of files whose
// changes are not reported.
func WithIgnorePatterns(patterns ...string) Option {
	return func(o *options) {
		o.config["ignore"] = patterns
	}
}

// WithEventBuffer sets the capacity of each folder subscription channel.
// Zero means default (16).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithBatchWindow sets how long filesystem events are collected before
// being delivered as one change notification. Zero means default (50ms).
func WithBatchWindow(d time.Duration) Option {
	return func(o *options) {
		o.config["batch_window"] = d
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Writes fail with ErrReadOnly, so edits stay unsaved.
// 2. Initialization (Mkdir, Git Init) is skipped.
// 3. Dev Safety Lock (go run temp dir) is BYPASSED (uses real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the "Sandbox" safety mechanism when running via `go run`.
// By default (true), docsync forces a temporary directory to prevent accidental data loss.
// Setting this to false allows operating on the real filesystem even during `go run`.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithAutoInit creates the workspace directory and, when versioning, runs
// git init if no repository exists.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithSystemDir sets the hidden metadata directory name (default ".docsync").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures
// (e.g. permission denied), which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}
