package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/docsync/pkg/core"
)

// watchWorker watches a single folder (non-recursively) and turns
// filesystem events into batched core.ChangeEvents on out.
type watchWorker struct {
	*worker.BaseWorker
	watch   *folderWatch
	config  NotifierConfig
	ignore  *ignoreMatcher
	watcher atomic.Pointer[fsnotify.Watcher]
	batcher *batcher
	cancel  context.CancelFunc
}

func newWatchWorker(watch *folderWatch, config NotifierConfig, ignore *ignoreMatcher) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher:" + watch.id),
		watch:      watch,
		config:     config,
		ignore:     ignore,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.watch.folder); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.watch.folder, err)
	}

	// Best effort: lets the worker pause while git rewrites the folder.
	_ = watcher.Add(filepath.Join(w.watch.folder, ".git"))

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.watcher.Store(watcher)
	w.batcher = newBatcher(w.config.BatchWindow, w.config.MaxBatch, func(paths []string) {
		w.emit(runCtx, paths)
	})
	w.watch.setActive(true)

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"folder":            w.watch.folder,
		}
	})
}

// handleGitLockEvent processes .git/index.lock events (git operations pause/resume).
// Returns true if the event was handled.
func (w *watchWorker) handleGitLockEvent(event fsnotify.Event, gitLocked *bool) bool {
	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false
	}

	if event.Has(fsnotify.Create) {
		*gitLocked = true
		w.config.Logger.Debug("git operation detected, pausing watcher", "folder", w.watch.folder)
	} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		*gitLocked = false
		w.config.Logger.Debug("git operation finished, reporting bulk change", "folder", w.watch.folder)
		// Which documents git touched is unknown.
		w.batcher.addBulk()
	}
	return true
}

// processFilesystemEvent handles filtering and batching of filesystem events.
// Returns true if the event was accepted.
func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) bool {
	w.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Dir(event.Name) != w.watch.folder {
		return false
	}
	if w.ignore.match(w.watch.folder, event.Name) {
		return false
	}

	w.batcher.add(event.Name)
	return true
}

// emit delivers a batch, protecting against channel closure during shutdown.
func (w *watchWorker) emit(ctx context.Context, paths []string) {
	defer func() {
		// The channel is closed by the notifier once all workers stopped.
		_ = recover()
	}()

	event := core.ChangeEvent{Folder: w.watch.folder, Paths: paths}
	select {
	case w.watch.out <- event:
		w.watch.recordEvent(event)
	case <-ctx.Done():
	}
}

// handleWatcherError processes errors from the fsnotify watcher.
// A queue overflow means events were lost, which is reported as a bulk change.
func (w *watchWorker) handleWatcherError(err error) {
	w.watch.recordError()
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.config.Logger.Warn("event queue overflow, reporting bulk change", "folder", w.watch.folder)
		w.batcher.addBulk()
		return
	}

	w.config.Logger.Error("fsnotify error", "folder", w.watch.folder, "error", err)
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)

			// Full stack only when debug logging is enabled.
			if w.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.config.Logger.Error("watcher panic",
					"folder", w.watch.folder,
					"error", panicErr,
					"stack", string(debug.Stack()),
				)
			} else {
				w.config.Logger.Error("watcher panic", "folder", w.watch.folder, "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.watch.setActive(false)
	defer w.watcher.Load().Close()

	var gitLocked bool
	err = w.mainEventLoop(ctx, &gitLocked)

	// Wait for in-flight flushes so none races with the channel being closed.
	w.batcher.stopAndWait(5 * time.Second)

	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context, gitLocked *bool) error {
	watcher := w.watcher.Load()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}

			if w.handleGitLockEvent(event, gitLocked) {
				continue
			}
			if *gitLocked {
				continue
			}

			w.processFilesystemEvent(event)

		case wErr, ok := <-watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
