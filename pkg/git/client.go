package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLockName is the lock file created in the working directory while
// a commit is in progress.
const DefaultLockName = ".docsync.lock"

// Client wraps git command execution with a file-based lock for process safety.
type Client struct {
	WorkDir  string
	Logger   *slog.Logger
	lockPath string
}

// NewClient creates a new git client for the given working directory.
// An empty lockName selects DefaultLockName.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	if lockName == "" {
		lockName = DefaultLockName
	}
	return &Client{
		WorkDir:  workDir,
		Logger:   logger,
		lockPath: lockName,
	}
}

// IsInstalled checks if git is available in the system path.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// LockPath returns the absolute path of the lock file.
func (c *Client) LockPath() string {
	return filepath.Join(c.WorkDir, c.lockPath)
}

// Lock acquires the file-based lock. It blocks until the lock is acquired
// or ctx is done.
func (c *Client) Lock(ctx context.Context) (func(), error) {
	fullLockPath := c.LockPath()

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock: %w", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Run executes a raw git command in the working directory.
// It does NOT acquire the lock; callers manage that via Client.Lock.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	out, err := c.exec(ctx, args...)
	return strings.TrimSpace(out), err
}

func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.WorkDir

	out, err := cmd.CombinedOutput()
	output := string(out)

	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, output)
	}

	return output, nil
}

// IsRepo reports whether the working directory is inside a git repository.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.Run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Init initializes a new git repository. Re-running it is safe.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.Run(ctx, "init")
	return err
}

// Add adds files to the stage.
func (c *Client) Add(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	_, err := c.Run(ctx, args...)
	return err
}

// Commit records staged changes. Committing with nothing staged is not an
// error.
func (c *Client) Commit(ctx context.Context, msg string) error {
	staged, err := c.HasStaged(ctx)
	if err != nil {
		return err
	}
	if !staged {
		return nil
	}
	_, err = c.Run(ctx, "commit", "-m", msg)
	return err
}

// HasStaged reports whether the index differs from HEAD.
func (c *Client) HasStaged(ctx context.Context) (bool, error) {
	out, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 0 && line[0] != ' ' && line[0] != '?' {
			return true, nil
		}
	}
	return false, nil
}

// Status returns the porcelain status of the repo. Leading status columns
// are preserved.
func (c *Client) Status(ctx context.Context) (string, error) {
	out, err := c.exec(ctx, "status", "--porcelain")
	return strings.TrimRight(out, "\n"), err
}

// Log returns the subjects of the last n commits touching path.
func (c *Client) Log(ctx context.Context, path string, n int) ([]string, error) {
	out, err := c.Run(ctx, "log", fmt.Sprintf("-n%d", n), "--format=%s", "--", path)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
