package platform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/docsync/internal/platform"
	"github.com/aretw0/docsync/pkg/adapters/memory"
	"github.com/aretw0/docsync/pkg/core"
	"github.com/aretw0/docsync/pkg/engine"
)

func closeEngine(t *testing.T, eng *engine.Engine) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range eng.Sessions() {
			s.Discard(ctx)
		}
		_ = eng.Close(ctx)
	})
}

func TestNew_InjectedStorage(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorage()
	storage.Put("/mem/a.md", "hello")

	eng, err := platform.New("", platform.WithStorage(storage), platform.WithDebounce(time.Hour))
	require.NoError(t, err)
	closeEngine(t, eng)

	s, err := eng.Open(ctx, "/mem/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", s.Content())

	require.NoError(t, s.SaveNow(ctx, "bye"))
	got, _ := storage.Get("/mem/a.md")
	assert.Equal(t, "bye", got)

	regs := eng.Registry().Registrations()
	require.Len(t, regs, 1)
	assert.False(t, regs[0].Active, "no notifier for injected storage")
}

func TestNew_FilesystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	doc := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(doc, []byte("v1"), 0644))

	eng, err := platform.New(root,
		platform.WithDebounce(30*time.Millisecond),
		platform.WithProtectionWindow(10*time.Millisecond),
		platform.WithBatchWindow(20*time.Millisecond),
	)
	require.NoError(t, err)
	closeEngine(t, eng)
	assert.Equal(t, root, eng.Root())

	var mu sync.Mutex
	var reloads []string
	s, err := eng.Open(ctx, "note.md", engine.OnReload(func(ev engine.ReloadEvent) {
		mu.Lock()
		defer mu.Unlock()
		reloads = append(reloads, ev.Content)
	}))
	require.NoError(t, err)
	assert.Equal(t, core.ResourceKey(doc), s.Path())
	assert.Equal(t, "v1", s.Content())

	require.Eventually(t, func() bool {
		regs := eng.Registry().Registrations()
		return len(regs) == 1 && regs[0].Active
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("Debounced edit reaches disk", func(t *testing.T) {
		require.NoError(t, s.Save("v2 draft"))
		require.NoError(t, s.Save("v2"))

		require.Eventually(t, func() bool {
			data, err := os.ReadFile(doc)
			return err == nil && string(data) == "v2" && s.State().Status == core.StatusSaved
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("External change is reloaded", func(t *testing.T) {
		// Let the echo of our own save pass.
		time.Sleep(200 * time.Millisecond)

		require.NoError(t, os.WriteFile(doc, []byte("v3 from elsewhere"), 0644))

		require.Eventually(t, func() bool {
			return s.Content() == "v3 from elsewhere"
		}, 3*time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Contains(t, reloads, "v3 from elsewhere")
		assert.NotContains(t, reloads, "v2", "own save never comes back as a reload")
	})

	require.NoError(t, s.Close(ctx))
	assert.Empty(t, eng.Registry().Registrations())
}

func TestNew_ReadOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	doc := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(doc, []byte("locked"), 0644))

	eng, err := platform.New(root, platform.WithReadOnly(true), platform.WithNotifier(nil))
	require.NoError(t, err)
	closeEngine(t, eng)

	s, err := eng.Open(ctx, doc)
	require.NoError(t, err)

	err = s.SaveNow(ctx, "changed")
	var werr *core.WriteError
	require.ErrorAs(t, err, &werr)
	assert.True(t, errors.Is(err, core.ErrReadOnly))
	assert.Equal(t, core.StatusError, s.State().Status)

	data, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "locked", string(data))
}

func TestNew_MissingWorkspace(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := platform.New(missing, platform.WithDevSafety(false))
	assert.Error(t, err)

	eng, err := platform.New(missing, platform.WithDevSafety(false), platform.WithAutoInit(true), platform.WithVersioning(false))
	require.NoError(t, err)
	closeEngine(t, eng)
	assert.DirExists(t, missing)
}

func TestNew_DevSafetyReroots(t *testing.T) {
	eng, err := platform.New("docsync-factory-test", platform.WithVersioning(false))
	require.NoError(t, err)
	closeEngine(t, eng)

	expected := filepath.Join(os.TempDir(), "docsync-dev", "docsync-factory-test")
	t.Cleanup(func() { os.RemoveAll(expected) })
	assert.Equal(t, expected, eng.Root())
}

func TestNew_InvalidIgnorePattern(t *testing.T) {
	_, err := platform.New(t.TempDir(), platform.WithIgnorePatterns("[bad"))
	assert.Error(t, err)
}
