package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/docsync/pkg/core"
)

const subscriptionBuffer = 64

// Notifier implements core.Notifier. Events are injected with Emit.
type Notifier struct {
	mu       sync.Mutex
	subs     map[string]*subscription
	watchErr error
	watches  int
	stops    int
	dropped  int
}

type subscription struct {
	folder string
	ch     chan core.ChangeEvent
}

// NewNotifier creates a Notifier with no subscriptions.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]*subscription)}
}

// Watch implements core.Notifier.
func (n *Notifier) Watch(ctx context.Context, id, folder string) (<-chan core.ChangeEvent, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.watchErr != nil {
		return nil, n.watchErr
	}
	if _, ok := n.subs[id]; ok {
		return nil, fmt.Errorf("watch %s already active", id)
	}
	n.watches++
	sub := &subscription{
		folder: filepath.Clean(folder),
		ch:     make(chan core.ChangeEvent, subscriptionBuffer),
	}
	n.subs[id] = sub
	return sub.ch, nil
}

// StopWatch implements core.Notifier.
func (n *Notifier) StopWatch(ctx context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub, ok := n.subs[id]
	if !ok {
		return fmt.Errorf("watch %s not found", id)
	}
	n.stops++
	delete(n.subs, id)
	close(sub.ch)
	return nil
}

// Emit delivers a change event to every subscription of folder. With no
// paths the event is a bulk change. It returns the number of deliveries.
func (n *Notifier) Emit(folder string, paths ...string) int {
	folder = filepath.Clean(folder)
	event := core.ChangeEvent{Folder: folder, Paths: paths}

	n.mu.Lock()
	defer n.mu.Unlock()

	delivered := 0
	for _, sub := range n.subs {
		if sub.folder != folder {
			continue
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
			n.dropped++
		}
	}
	return delivered
}

// FailWatches makes following Watch calls fail with err. Nil restores them.
func (n *Notifier) FailWatches(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watchErr = err
}

// Active returns the watched folders, sorted.
func (n *Notifier) Active() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.subs))
	for _, sub := range n.subs {
		out = append(out, sub.folder)
	}
	sort.Strings(out)
	return out
}

// Calls returns how many subscriptions were started and stopped.
func (n *Notifier) Calls() (watches, stops int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watches, n.stops
}

// Dropped returns how many events were dropped because a subscriber's
// buffer was full.
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// State implements introspection.Introspectable.
func (n *Notifier) State() any {
	return n.Active()
}

// ComponentType implements introspection.Component.
func (n *Notifier) ComponentType() string {
	return "memory-notifier"
}

var (
	_ core.Notifier                = (*Notifier)(nil)
	_ introspection.Introspectable = (*Notifier)(nil)
	_ introspection.Component      = (*Notifier)(nil)
)
