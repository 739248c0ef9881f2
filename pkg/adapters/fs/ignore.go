package fs

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnorePatterns hide dotfiles (atomic-write temp files, lock files,
// VCS metadata) and common editor backups from watchers.
var DefaultIgnorePatterns = []string{
	".*",
	"*~",
	"*.swp",
	"*.tmp",
	"#*#",
}

// ignoreMatcher filters filesystem events by glob patterns.
// Patterns are matched against both the base name and the path relative to
// the watched folder, so "*.log" and "drafts/**" both work.
type ignoreMatcher struct {
	patterns []string
}

func newIgnoreMatcher(patterns []string) (*ignoreMatcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &ignoreMatcher{patterns: patterns}, nil
}

func (m *ignoreMatcher) match(folder, path string) bool {
	base := filepath.Base(path)
	rel, err := filepath.Rel(folder, path)
	if err != nil {
		rel = base
	}
	rel = filepath.ToSlash(rel)

	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
