package fs

import (
	"sort"
	"sync"
	"time"
)

// batcher coalesces the paths changed within a short window into a single
// flush. When more than max distinct paths pile up the batch degrades to a
// bulk flush (nil paths).
type batcher struct {
	window time.Duration
	max    int
	flush  func(paths []string)

	mu      sync.Mutex
	paths   map[string]struct{}
	bulk    bool
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newBatcher(window time.Duration, max int, flush func(paths []string)) *batcher {
	return &batcher{
		window: window,
		max:    max,
		flush:  flush,
		paths:  make(map[string]struct{}),
	}
}

// add records a changed path. The window starts with the first path of a
// batch and is not extended by later ones, so a steady stream of changes
// still flushes regularly.
func (b *batcher) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	if !b.bulk {
		b.paths[path] = struct{}{}
		if len(b.paths) > b.max {
			b.bulk = true
			b.paths = make(map[string]struct{})
		}
	}
	b.armLocked()
}

// addBulk marks the pending batch as "something changed, details unknown".
func (b *batcher) addBulk() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.bulk = true
	b.paths = make(map[string]struct{})
	b.armLocked()
}

func (b *batcher) armLocked() {
	if b.timer != nil {
		return
	}
	b.wg.Add(1)
	b.timer = time.AfterFunc(b.window, b.fire)
}

func (b *batcher) fire() {
	defer b.wg.Done()

	b.mu.Lock()
	b.timer = nil
	if b.stopped {
		b.mu.Unlock()
		return
	}
	var paths []string
	if !b.bulk {
		paths = make([]string, 0, len(b.paths))
		for p := range b.paths {
			paths = append(paths, p)
		}
		sort.Strings(paths)
	}
	b.bulk = false
	b.paths = make(map[string]struct{})
	b.mu.Unlock()

	b.flush(paths)
}

// stopAndWait stops accepting paths, drops the pending batch and waits up
// to timeout for an in-flight flush to return.
func (b *batcher) stopAndWait(timeout time.Duration) bool {
	b.mu.Lock()
	b.stopped = true
	if b.timer != nil && b.timer.Stop() {
		b.timer = nil
		b.wg.Done()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
