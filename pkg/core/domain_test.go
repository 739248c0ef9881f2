package core_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/docsync/pkg/core"
)

func TestNewResourceKey(t *testing.T) {
	t.Run("Cleans absolute paths", func(t *testing.T) {
		key, err := core.NewResourceKey("/docs/sub/../note.md")
		require.NoError(t, err)
		assert.Equal(t, core.ResourceKey("/docs/note.md"), key)
		assert.Equal(t, "/docs", key.Folder())
	})

	t.Run("Resolves relative paths", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)

		key, err := core.NewResourceKey("note.md")
		require.NoError(t, err)
		assert.Equal(t, core.ResourceKey(filepath.Join(wd, "note.md")), key)
	})

	t.Run("Rejects empty path", func(t *testing.T) {
		_, err := core.NewResourceKey("")
		assert.ErrorIs(t, err, core.ErrEmptyPath)
	})
}

func TestChangeEvent_Contains(t *testing.T) {
	tests := []struct {
		name  string
		event core.ChangeEvent
		path  string
		want  bool
	}{
		{"Named path", core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/a.md"}}, "/docs/a.md", true},
		{"Named path not cleaned", core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/./a.md"}}, "/docs/a.md", true},
		{"Other path", core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/a.md"}}, "/docs/b.md", false},
		{"Bulk covers folder", core.ChangeEvent{Folder: "/docs"}, "/docs/b.md", true},
		{"Bulk does not cover subfolders", core.ChangeEvent{Folder: "/docs"}, "/docs/sub/b.md", false},
		{"Bulk does not cover siblings", core.ChangeEvent{Folder: "/docs"}, "/other/b.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Contains(tt.path))
		})
	}
}

func TestChangeEvent_String(t *testing.T) {
	ev := core.ChangeEvent{Folder: "/docs", Paths: []string{"/docs/a.md", "/docs/b.md"}}
	assert.Equal(t, "/docs: a.md, b.md", ev.String())
	assert.Equal(t, "/docs: bulk change", core.ChangeEvent{Folder: "/docs"}.String())
}

func TestSaveState_Dirty(t *testing.T) {
	pending := "draft"
	assert.False(t, core.SaveState{Status: core.StatusSaved}.Dirty())
	assert.True(t, core.SaveState{Status: core.StatusError, PendingContent: &pending}.Dirty())
}

func TestSaveStatus_String(t *testing.T) {
	assert.Equal(t, "saved", core.StatusSaved.String())
	assert.Equal(t, "saving", core.StatusSaving.String())
	assert.Equal(t, "unsaved", core.StatusUnsaved.String())
	assert.Equal(t, "error", core.StatusError.String())
	assert.Equal(t, "unknown", core.SaveStatus(42).String())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")

	var err error = &core.WriteError{Path: "/docs/a.md", Err: cause}
	err = fmt.Errorf("saving: %w", err)

	var werr *core.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "/docs/a.md", werr.Path)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, werr, "write /docs/a.md: permission denied")

	rerr := &core.ReadError{Path: "/docs/b.md", Err: os.ErrNotExist}
	assert.ErrorIs(t, rerr, os.ErrNotExist)
	assert.Contains(t, rerr.Error(), "/docs/b.md")
}
