package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/docsync/pkg/adapters/memory"
	"github.com/aretw0/docsync/pkg/core"
)

// fakeClock is a manually advanced clock for protection window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	storage  *memory.Storage
	notifier *memory.Notifier
	clock    *fakeClock
	engine   *Engine
}

func newTestEnv(t *testing.T, debounce time.Duration) *testEnv {
	t.Helper()

	env := &testEnv{
		storage:  memory.NewStorage(),
		notifier: memory.NewNotifier(),
		clock:    newFakeClock(),
	}
	env.engine = New(env.storage, env.notifier, Config{
		Debounce:         debounce,
		ProtectionWindow: 2 * time.Second,
		Now:              env.clock.Now,
	})
	t.Cleanup(func() {
		for _, s := range env.engine.Sessions() {
			s.Discard(context.Background())
		}
		env.engine.registry.Close(context.Background())
	})
	return env
}

func newTestCoordinator(t *testing.T, storage core.Storage, delay time.Duration, initial string) *Coordinator {
	t.Helper()
	c := NewCoordinator(CoordinatorConfig{
		Path:    "/docs/note.md",
		Storage: storage,
		Delay:   delay,
	}, initial)
	t.Cleanup(c.Close)
	return c
}

func waitForStatus(t *testing.T, c *Coordinator, want core.SaveStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Status == want
	}, 2*time.Second, 5*time.Millisecond, "status never reached %s", want)
}

func contents(writes []memory.Write) []string {
	out := make([]string, 0, len(writes))
	for _, w := range writes {
		out = append(out, w.Content)
	}
	return out
}
