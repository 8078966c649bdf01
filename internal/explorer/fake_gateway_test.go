package explorer

import (
	"context"
	iofs "io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/justyntemme/explorer/internal/fs"
)

// fakeFS is an in-memory fs.Gateway. Paths ending in "/" are directories.
type fakeFS struct {
	mu         sync.Mutex
	nodes      map[string]fs.FileRef
	children   map[string]map[string]bool
	unreadable map[string]bool
	listGates  map[string]chan struct{}
	walkGates  map[string]chan struct{}
	listCalls  map[string]int
}

func newFakeFS(paths ...string) *fakeFS {
	f := &fakeFS{
		nodes:      make(map[string]fs.FileRef),
		children:   make(map[string]map[string]bool),
		unreadable: make(map[string]bool),
		listGates:  make(map[string]chan struct{}),
		walkGates:  make(map[string]chan struct{}),
		listCalls:  make(map[string]int),
	}
	f.nodes["/"] = fs.FileRef{Path: "/", Name: "/", IsDir: true}
	for _, p := range paths {
		f.add(p)
	}
	return f
}

func (f *fakeFS) add(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	isDir := strings.HasSuffix(p, "/")
	p = filepath.Clean(p)
	for cur, dir := p, isDir; cur != "/"; cur, dir = filepath.Dir(cur), true {
		if _, ok := f.nodes[cur]; !ok {
			name := filepath.Base(cur)
			f.nodes[cur] = fs.FileRef{
				Path:     cur,
				Name:     name,
				IsDir:    dir,
				IsHidden: strings.HasPrefix(name, "."),
				Size:     int64(len(name)),
			}
		}
		parent := filepath.Dir(cur)
		if f.children[parent] == nil {
			f.children[parent] = make(map[string]bool)
		}
		f.children[parent][cur] = true
	}
}

// gateList blocks List(p) until the returned func is called.
func (f *fakeFS) gateList(p string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.listGates[p] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

// gateWalk blocks the walk before visiting p until released or the walk
// is cancelled.
func (f *fakeFS) gateWalk(p string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.walkGates[p] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeFS) calls(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[p]
}

func (f *fakeFS) List(path string) ([]fs.FileRef, error) {
	f.mu.Lock()
	gate := f.listGates[path]
	f.listCalls[path]++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[path]
	if !ok {
		return nil, &fs.ReadError{Path: path, Err: iofs.ErrNotExist}
	}
	if !node.IsDir || f.unreadable[path] {
		return nil, &fs.ReadError{Path: path, Err: iofs.ErrPermission}
	}
	return f.childRefs(path), nil
}

func (f *fakeFS) childRefs(path string) []fs.FileRef {
	var refs []fs.FileRef
	for c := range f.children[path] {
		refs = append(refs, f.nodes[c])
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs
}

func (f *fakeFS) Stat(path string) (fs.FileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[path]
	if !ok {
		return fs.FileRef{}, iofs.ErrNotExist
	}
	return node, nil
}

func (f *fakeFS) Exists(path string) bool {
	_, err := f.Stat(path)
	return err == nil
}

func (f *fakeFS) IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (f *fakeFS) IsDirectory(path string) bool {
	node, err := f.Stat(path)
	return err == nil && node.IsDir
}

func (f *fakeFS) Walk(ctx context.Context, root string, fn fs.WalkFunc) error {
	f.mu.Lock()
	node, ok := f.nodes[root]
	gate := f.walkGates[root]
	var kids []fs.FileRef
	if ok && node.IsDir {
		kids = f.childRefs(root)
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := fn(node); err != nil {
		if err == iofs.SkipDir {
			return nil
		}
		return err
	}
	for _, k := range kids {
		if err := f.Walk(ctx, k.Path, fn); err != nil {
			return err
		}
	}
	return nil
}
