// Package docsync is the Composition Root for the docsync engine.
//
// It connects the synchronization engine with the infrastructure adapters
// (local filesystem, fsnotify, git) using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// An editor should never ask its user to save. docsync keeps one open
// document in step with its file: edits are written after a short pause,
// changes made by other programs are loaded back into the view, and the
// echo of docsync's own writes is never mistaken for such a change.
//
// Features:
//
//   - **Debounced Autosave**: Bursts of edits become one write, and at most one write per document is in flight.
//   - **External Reload**: Folder watches report changes; the displayed content follows the file unless edits are pending.
//   - **Echo Suppression**: Notifications inside the protection window after a save are ignored.
//   - **Safe Switching**: Switching or closing flushes pending edits before the document is released.
//   - **Default Adapter (FS + Git)**: Atomic file writes, optionally committed to git with a change reason.
//   - **Extensible**: Other backends plug in through `core.Storage` and `core.Notifier`.
//
// Usage:
//
//	eng, err := docsync.New("./notes",
//		docsync.WithDebounce(500*time.Millisecond),
//		docsync.WithLogger(logger),
//	)
//
//	// Open a document and edit it
//	s, err := eng.Open(ctx, "todo.md", docsync.OnReload(func(ev docsync.ReloadEvent) {
//		view.SetText(ev.Content)
//	}))
//	err = s.Save("- [ ] write docs")
//
//	// Flush and release everything
//	err = eng.Close(ctx)
package docsync
