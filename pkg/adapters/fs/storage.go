// Package fs implements the storage and notification ports on the local
// filesystem, with optional git versioning of every write.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/docsync/pkg/core"
	"github.com/aretw0/docsync/pkg/git"
)

// DefaultSystemDir is the directory reserved for docsync metadata inside a
// workspace. Its name also prefixes the git lock file.
const DefaultSystemDir = ".docsync"

// StorageConfig holds the configuration for the filesystem storage.
type StorageConfig struct {
	Root       string // relative paths are resolved against Root
	ReadOnly   bool
	Versioning bool // commit every write to git
	AutoInit   bool // git init Root when versioning and no repository exists
	SystemDir  string
	FileMode   os.FileMode
	Logger     *slog.Logger
}

// Storage implements core.Storage on the local filesystem.
// Writes are atomic: content goes to a temp file that is renamed over the
// target.
type Storage struct {
	root   string
	config StorageConfig
	git    *git.Client
	logger *slog.Logger

	mu        sync.Mutex
	reads     uint64
	writes    uint64
	failures  uint64
	commits   uint64
	lastWrite *time.Time
}

// NewStorage creates a filesystem storage.
func NewStorage(config StorageConfig) *Storage {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	root := config.Root
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	s := &Storage{
		root:   root,
		config: config,
		logger: config.Logger,
	}
	if config.Versioning {
		s.git = git.NewClient(root, config.SystemDir+".lock", config.Logger)
	}
	return s
}

// Root returns the absolute workspace root.
func (s *Storage) Root() string {
	return s.root
}

// Initialize prepares the workspace: it creates the root directory and,
// when versioning, makes sure a git repository exists that ignores the
// system directory.
func (s *Storage) Initialize(ctx context.Context) error {
	if s.config.ReadOnly {
		info, err := os.Stat(s.root)
		if err != nil {
			return fmt.Errorf("workspace path does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("workspace path is not a directory: %s", s.root)
		}
		return nil
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	if s.git == nil {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("versioning requires git, which is not installed")
	}

	wasNewRepo := false
	if !s.git.IsRepo(ctx) {
		if !s.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", s.root)
		}
		if err := s.git.Init(ctx); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := s.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo {
		if err := s.git.Add(ctx, ".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := s.git.Commit(ctx, git.Message{Type: git.CommitTypeChore, Subject: "configure " + s.config.SystemDir + " ignore"}.String()); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore appends the system directory and lock file to .gitignore.
// It reports whether the file was modified.
func (s *Storage) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(s.root, ".gitignore")
	entries := []string{s.config.SystemDir + "/", s.config.SystemDir + ".lock"}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, e := range entries {
		if !present[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// Resolve maps path to an absolute filesystem path.
func (s *Storage) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.root, path)
}

// Read implements core.Storage.
func (s *Storage) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.Resolve(path))

	s.mu.Lock()
	s.reads++
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write implements core.Storage.
//
// Workflow:
//  1. Reject the write in read-only mode.
//  2. Create parent directories.
//  3. Write atomically to disk.
//  4. (If versioning) 'git add' and 'git commit' under the workspace lock.
func (s *Storage) Write(ctx context.Context, path, content string) error {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := s.Resolve(path)
	err := s.write(ctx, fullPath, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return err
	}
	s.writes++
	now := time.Now()
	s.lastWrite = &now
	return nil
}

func (s *Storage) write(ctx context.Context, fullPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := writeFileAtomic(fullPath, []byte(content), s.config.FileMode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if s.git == nil {
		return nil
	}
	return s.commit(ctx, fullPath)
}

func (s *Storage) commit(ctx context.Context, fullPath string) error {
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		s.logger.Debug("path outside workspace, not versioned", "path", fullPath)
		return nil
	}

	unlock, err := s.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := s.git.Add(ctx, rel); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}

	msg := git.SaveMessage(rel)
	if reason := core.ChangeReason(ctx); reason != "" {
		msg = git.AppendFooter(reason)
	}

	if err := s.git.Commit(ctx, msg); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// IsNotExist reports whether err means the document does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

var _ core.Storage = (*Storage)(nil)
