// Package memory provides in-process implementations of the storage and
// notification ports, for embedding and for tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/docsync/pkg/core"
)

// Write records one write attempt.
type Write struct {
	Path    string
	Content string
	Err     error
}

// Storage implements core.Storage with a map.
type Storage struct {
	mu       sync.Mutex
	files    map[string]string
	writes   []Write
	inflight map[string]int
	maxPeak  int

	readErrs map[string]error
	writeErr error
	gate     chan struct{}
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		files:    make(map[string]string),
		inflight: make(map[string]int),
		readErrs: make(map[string]error),
	}
}

// Put seeds content without recording a write, like an external actor would.
func (s *Storage) Put(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filepath.Clean(path)] = content
}

// Get returns the stored content of path.
func (s *Storage) Get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[filepath.Clean(path)]
	return content, ok
}

// Read implements core.Storage.
func (s *Storage) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.readErrs[path]; ok {
		return "", err
	}
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return content, nil
}

// Write implements core.Storage. While writes are held it blocks until
// they are released or ctx is done.
func (s *Storage) Write(ctx context.Context, path, content string) error {
	path = filepath.Clean(path)

	s.mu.Lock()
	s.inflight[path]++
	if s.inflight[path] > s.maxPeak {
		s.maxPeak = s.inflight[path]
	}
	gate := s.gate
	s.mu.Unlock()

	var err error
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[path]--

	if err == nil {
		err = s.writeErr
	}
	s.writes = append(s.writes, Write{Path: path, Content: content, Err: err})
	if err != nil {
		return err
	}
	s.files[path] = content
	return nil
}

// Writes returns every write attempt in order.
func (s *Storage) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// WritesFor returns the write attempts for path.
func (s *Storage) WritesFor(path string) []Write {
	path = filepath.Clean(path)
	var out []Write
	for _, w := range s.Writes() {
		if w.Path == path {
			out = append(out, w)
		}
	}
	return out
}

// InFlight returns the number of writes currently in progress for path.
func (s *Storage) InFlight(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[filepath.Clean(path)]
}

// MaxConcurrentWrites is the highest number of simultaneous writes seen
// for any single path.
func (s *Storage) MaxConcurrentWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPeak
}

// FailWrites makes every following write fail with err. Nil restores writes.
func (s *Storage) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes reads of path fail with err. Nil restores reads.
func (s *Storage) FailReads(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = filepath.Clean(path)
	if err == nil {
		delete(s.readErrs, path)
		return
	}
	s.readErrs[path] = err
}

// HoldWrites blocks writes until the returned release function is called.
func (s *Storage) HoldWrites() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gate := make(chan struct{})
	s.gate = gate

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// ComponentType implements introspection.Component.
func (s *Storage) ComponentType() string {
	return "memory-storage"
}

// StorageState exposes the in-memory storage for observability.
type StorageState struct {
	Files    int `json:"files"`
	Writes   int `json:"writes"`
	Failed   int `json:"failed"`
	InFlight int `json:"in_flight"`
}

// State implements introspection.Introspectable.
func (s *Storage) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StorageState{Files: len(s.files), Writes: len(s.writes)}
	for _, w := range s.writes {
		if w.Err != nil {
			st.Failed++
		}
	}
	for _, n := range s.inflight {
		st.InFlight += n
	}
	return st
}

var (
	_ core.Storage                 = (*Storage)(nil)
	_ introspection.Introspectable = (*Storage)(nil)
	_ introspection.Component      = (*Storage)(nil)
)
