package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrReadOnly  = errors.New("storage is in read-only mode")
	ErrClosed    = errors.New("document is closed")
	ErrNotOpen   = errors.New("no document is open")
	ErrEmptyPath = errors.New("path cannot be empty")
)

// ReadError reports a failed read of a resource.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed write of a resource.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
