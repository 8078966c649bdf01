package fs

import (
	"context"
	"fmt"
	"time"
)

// FileRef is a reference to a single filesystem node. Two refs are the
// same node iff their paths are equal.
type FileRef struct {
	Path     string
	Name     string
	IsDir    bool
	IsHidden bool
	Size     int64
	ModTime  time.Time
}

// ReadError is returned when a directory cannot be listed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WalkFunc is called for every node visited by Gateway.Walk, the root
// included. Returning fs.SkipDir on a directory skips its children; any
// other non-nil error stops the walk. Calls may happen concurrently.
type WalkFunc func(ref FileRef) error

// Gateway is the synchronous filesystem surface the explorer consumes.
type Gateway interface {
	// List returns the direct children of path or a *ReadError.
	List(path string) ([]FileRef, error)
	// Stat describes a single node.
	Stat(path string) (FileRef, error)
	Exists(path string) bool
	IsHidden(path string) bool
	IsDirectory(path string) bool
	// Walk visits root and its subtree parents-before-children until
	// ctx is cancelled.
	Walk(ctx context.Context, root string, fn WalkFunc) error
}
