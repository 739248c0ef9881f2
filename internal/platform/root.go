package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFileName is the workspace configuration file.
const ConfigFileName = "docsync.yaml"

// ErrRootNotFound is returned by FindRoot when no ancestor is a workspace.
var ErrRootNotFound = errors.New("workspace root not found")

// rootMarkers are the entries whose presence makes a directory a workspace
// root, in order of precedence.
var rootMarkers = []string{".docsync", ConfigFileName, ".git"}

// FindRoot walks up from startDir and returns the absolute path of the
// first directory holding one of the root markers.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if marker := rootMarker(dir); marker != "" {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

// rootMarker returns the first marker found in dir, or "".
func rootMarker(dir string) string {
	for _, name := range rootMarkers {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}
