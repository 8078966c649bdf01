package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/explorer/internal/debug"
)

// OSGateway implements Gateway on the local filesystem.
type OSGateway struct{}

// NewOSGateway returns a Gateway backed by the operating system.
func NewOSGateway() *OSGateway {
	return &OSGateway{}
}

// skipDirRoots contains top-level virtual filesystems that recursive
// walks never enter.
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// shouldSkipPath returns true if the path lives under one of skipDirRoots.
func shouldSkipPath(path string) bool {
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	rest := path[1:]
	slashIdx := strings.IndexByte(rest, '/')
	var firstComponent string
	if slashIdx == -1 {
		firstComponent = rest
	} else {
		firstComponent = rest[:slashIdx]
	}
	return skipDirRoots[firstComponent]
}

func hiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func refFromInfo(path string, info fs.FileInfo) FileRef {
	name := info.Name()
	if path == "/" {
		name = "/"
	}
	return FileRef{
		Path:     path,
		Name:     name,
		IsDir:    info.IsDir(),
		IsHidden: hiddenName(name),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
}

// List reads a single directory level.
func (g *OSGateway) List(path string) ([]FileRef, error) {
	debug.Log(debug.FS, "List: reading %q", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &ReadError{Path: path, Err: fs.ErrInvalid}
	}

	var (
		result  []FileRef
		mu      sync.Mutex
		rootErr error
	)

	// Follow symlinks so a link to a directory lists as a directory.
	conf := &fastwalk.Config{Follow: true}
	pathLen := len(path)

	walkErr := fastwalk.Walk(conf, path, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if fullPath == path {
				rootErr = err
				return err
			}
			debug.Log(debug.FS, "List: walk error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == path {
			return nil
		}

		relStart := pathLen
		if relStart < len(fullPath) && fullPath[relStart] == filepath.Separator {
			relStart++
		}
		if strings.ContainsRune(fullPath[relStart:], filepath.Separator) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			// Broken symlink: describe the link itself.
			info, err = os.Lstat(fullPath)
			if err != nil {
				debug.Log(debug.FS, "List: skipping %q: %v", d.Name(), err)
				return nil
			}
		}

		mu.Lock()
		result = append(result, refFromInfo(fullPath, info))
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})

	if rootErr != nil {
		return nil, &ReadError{Path: path, Err: rootErr}
	}
	if walkErr != nil {
		return nil, &ReadError{Path: path, Err: walkErr}
	}

	debug.Log(debug.FS, "List: %q has %d entries", path, len(result))
	return result, nil
}

// Stat follows symlinks, falling back to the link itself.
func (g *OSGateway) Stat(path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		info, err = os.Lstat(path)
		if err != nil {
			return FileRef{}, err
		}
	}
	return refFromInfo(path, info), nil
}

func (g *OSGateway) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (g *OSGateway) IsHidden(path string) bool {
	return hiddenName(filepath.Base(path))
}

func (g *OSGateway) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Walk runs a parallel top-down walk. Symlinks are not followed so a
// link back to an ancestor cannot loop.
func (g *OSGateway) Walk(ctx context.Context, root string, fn WalkFunc) error {
	debug.Log(debug.FS_WALK, "Walk: starting %q", root)

	conf := &fastwalk.Config{Follow: false}

	err := fastwalk.Walk(conf, root, func(fullPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			debug.Log(debug.FS_WALK, "Walk: error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath != root && shouldSkipPath(fullPath) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed between readdir and stat.
			debug.Log(debug.FS_WALK, "Walk: %q vanished: %v", fullPath, err)
			return nil
		}
		debug.Log(debug.FS_WALK, "Walk: visit %q", fullPath)
		return fn(refFromInfo(fullPath, info))
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
