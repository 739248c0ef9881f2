package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default,
// since the commands keep their values in package variables between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_WriteThenRead(t *testing.T) {
	root := t.TempDir()

	out, err := runCLI(t, "", "write", "note.md", "--content", "hello", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "saved")

	data, err := os.ReadFile(filepath.Join(root, "note.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out, err = runCLI(t, "", "read", "note.md", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	t.Run("JSON output", func(t *testing.T) {
		out, err := runCLI(t, "", "read", "note.md", "--json", "--root", root)
		require.NoError(t, err)

		var got readOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "hello", got.Content)
		assert.Equal(t, filepath.Join(root, "note.md"), got.Path)
	})

	t.Run("Content from stdin", func(t *testing.T) {
		_, err := runCLI(t, "from stdin\n", "write", "notes/sub.md", "--root", root)
		require.NoError(t, err)

		out, err := runCLI(t, "", "read", "notes/sub.md", "--root", root)
		require.NoError(t, err)
		assert.Equal(t, "from stdin\n", out)
	})

	t.Run("Explicit empty content", func(t *testing.T) {
		_, err := runCLI(t, "", "write", "note.md", "--content", "", "--root", root)
		require.NoError(t, err)

		out, err := runCLI(t, "", "read", "note.md", "--root", root)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestCLI_ReadMissingDocument(t *testing.T) {
	root := t.TempDir()

	_, err := runCLI(t, "", "read", "absent.md", "--root", root)
	assert.ErrorContains(t, err, "failed to read document")
}

func TestCLI_WriteRecordsHistory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	for _, kv := range [][2]string{
		{"GIT_AUTHOR_NAME", "docsync"},
		{"GIT_AUTHOR_EMAIL", "docsync@example.com"},
		{"GIT_COMMITTER_NAME", "docsync"},
		{"GIT_COMMITTER_EMAIL", "docsync@example.com"},
	} {
		t.Setenv(kv[0], kv[1])
	}
	gitInit := exec.Command("git", "init")
	gitInit.Dir = root
	require.NoError(t, gitInit.Run())

	_, err := runCLI(t, "", "write", "note.md", "--content", "v1", "-m", "rewrite intro", "--root", root)
	require.NoError(t, err)

	out, err := runCLI(t, "", "log", "note.md", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "rewrite intro")
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docsync version "))
}
