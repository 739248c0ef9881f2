package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/docsync/pkg/core"
)

func TestReconciler_ProtectionWindow(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Outcome
		content string
	}{
		{name: "Echo at 500ms is suppressed", elapsed: 500 * time.Millisecond, want: OutcomeSkippedEcho, content: "mine"},
		{name: "Just inside the window", elapsed: 1999 * time.Millisecond, want: OutcomeSkippedEcho, content: "mine"},
		{name: "External change at 3000ms reloads", elapsed: 3000 * time.Millisecond, want: OutcomeReloaded, content: "theirs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, time.Hour)
			env.storage.Put("/docs/p.md", "")

			s, err := env.engine.Open(ctx, "/docs/p.md")
			require.NoError(t, err)
			require.NoError(t, s.SaveNow(ctx, "mine"))

			env.storage.Put("/docs/p.md", "theirs")
			env.clock.Advance(tt.elapsed)

			outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{
				Folder: "/docs",
				Paths:  []string{"/docs/p.md"},
			})
			assert.Equal(t, tt.want, outcomes["/docs/p.md"])
			assert.Equal(t, tt.content, s.Content())
		})
	}
}

func TestReconciler_NeverClobbersLocalEdits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "base")

	s, err := env.engine.Open(ctx, "/docs/p.md")
	require.NoError(t, err)
	require.NoError(t, s.Save("local edit"))

	env.storage.Put("/docs/p.md", "remote edit")
	env.clock.Advance(time.Hour)

	for i := 0; i < 3; i++ {
		outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/p.md"}})
		assert.Equal(t, OutcomeSkippedDirty, outcomes["/docs/p.md"])
	}
	assert.Equal(t, "local edit", s.Content())

	state := s.State()
	assert.Equal(t, core.StatusUnsaved, state.Status)
	assert.Equal(t, "base", state.LastSavedContent)
	assert.Equal(t, uint64(3), env.engine.Reconciler().Stats().SkippedDirty)
}

func TestReconciler_SkipsResourceWithFailedSave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "base")

	s, err := env.engine.Open(ctx, "/docs/p.md")
	require.NoError(t, err)

	env.storage.FailWrites(errors.New("read-only fs"))
	require.Error(t, s.SaveNow(ctx, "unsaved"))
	env.storage.FailWrites(nil)

	env.storage.Put("/docs/p.md", "remote")
	outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/p.md"}})
	assert.Equal(t, OutcomeSkippedDirty, outcomes["/docs/p.md"])
	assert.Equal(t, "unsaved", s.Content())
}

func TestReconciler_BulkEventCoversFolder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/a.md", "a1")
	env.storage.Put("/docs/b.md", "b1")
	env.storage.Put("/other/c.md", "c1")

	a, err := env.engine.Open(ctx, "/docs/a.md")
	require.NoError(t, err)
	b, err := env.engine.Open(ctx, "/docs/b.md")
	require.NoError(t, err)
	c, err := env.engine.Open(ctx, "/other/c.md")
	require.NoError(t, err)

	env.storage.Put("/docs/a.md", "a2")
	env.storage.Put("/docs/b.md", "b2")
	env.storage.Put("/other/c.md", "c2")

	outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs"})
	assert.Len(t, outcomes, 2)
	assert.Equal(t, "a2", a.Content())
	assert.Equal(t, "b2", b.Content())
	assert.Equal(t, "c1", c.Content())
}

func TestReconciler_OnlyNamedPathsAreReloaded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/a.md", "a1")
	env.storage.Put("/docs/b.md", "b1")

	a, err := env.engine.Open(ctx, "/docs/a.md")
	require.NoError(t, err)
	b, err := env.engine.Open(ctx, "/docs/b.md")
	require.NoError(t, err)

	env.storage.Put("/docs/a.md", "a2")
	env.storage.Put("/docs/b.md", "b2")

	env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/a.md", "/docs/unrelated.md"}})
	assert.Equal(t, "a2", a.Content())
	assert.Equal(t, "b1", b.Content())
}

func TestReconciler_ReadFailureKeepsContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "kept")

	s, err := env.engine.Open(ctx, "/docs/p.md")
	require.NoError(t, err)

	env.storage.FailReads("/docs/p.md", errors.New("permission denied"))
	outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/p.md"}})

	assert.Equal(t, OutcomeReadFailed, outcomes["/docs/p.md"])
	assert.Equal(t, "kept", s.Content())
	assert.Equal(t, core.StatusSaved, s.State().Status)
	assert.Equal(t, uint64(1), env.engine.Reconciler().Stats().ReadFailures)
}

func TestReconciler_UnchangedContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "same")

	var reloads int
	s, err := env.engine.Open(ctx, "/docs/p.md", OnReload(func(ReloadEvent) { reloads++ }))
	require.NoError(t, err)

	outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/p.md"}})
	assert.Equal(t, OutcomeUnchanged, outcomes["/docs/p.md"])
	assert.Equal(t, "same", s.Content())
	assert.Zero(t, reloads)
}

func TestReconciler_NotificationsReachSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "v1")

	var mu sync.Mutex
	var reloaded []ReloadEvent
	s, err := env.engine.Open(ctx, "/docs/p.md", OnReload(func(ev ReloadEvent) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, ev)
	}))
	require.NoError(t, err)

	env.storage.Put("/docs/p.md", "v2 from another tool")
	require.Equal(t, 1, env.notifier.Emit("/docs", "/docs/p.md"))

	require.Eventually(t, func() bool {
		return s.Content() == "v2 from another tool"
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reloaded, 1)
	assert.Equal(t, core.ResourceKey("/docs/p.md"), reloaded[0].Path)
	assert.Equal(t, "v2 from another tool", s.State().LastSavedContent)
}

func TestReconciler_UnsubscribedResourceIsIgnored(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.storage.Put("/docs/p.md", "v1")

	s, err := env.engine.Open(ctx, "/docs/p.md")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	env.storage.Put("/docs/p.md", "v2")
	outcomes := env.engine.Reconciler().HandleEvent(ctx, core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/p.md"}})
	assert.Empty(t, outcomes)
}
