package explorer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/justyntemme/explorer/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGateway records List calls per directory.
type countingGateway struct {
	*fs.OSGateway
	mu    sync.Mutex
	calls map[string]int
}

func (g *countingGateway) List(path string) ([]fs.FileRef, error) {
	g.mu.Lock()
	g.calls[path]++
	g.mu.Unlock()
	return g.OSGateway.List(path)
}

func (g *countingGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func newWatchedEngine(t *testing.T, root string) (*Engine, *countingGateway) {
	t.Helper()
	w, err := fs.NewDirectoryWatcher(20 * time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	gw := &countingGateway{OSGateway: fs.NewOSGateway(), calls: make(map[string]int)}
	e, err := New(Options{
		StartDirectory: root,
		StorageRoots:   []string{root},
		Gateway:        gw,
		Watcher:        w,
	})
	require.NoError(t, err)
	t.Cleanup(e.Dispose)
	return e, gw
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func baseNames(e *Engine) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return names(e.base)
}

func TestEngine_WatchRefresh(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	touch(t, filepath.Join(root, "x.txt"))

	e, gw := newWatchedEngine(t, root)
	waitNames(t, e, "..", "sub", "x.txt")

	touch(t, filepath.Join(root, "y.txt"))
	waitNames(t, e, "..", "sub", "x.txt", "y.txt")

	e.MoveTo(sub, false)
	waitNames(t, e, "..")
	rootReads := gw.count(root)

	// Only the current directory is watched.
	touch(t, filepath.Join(root, "z.txt"))
	touch(t, filepath.Join(sub, "inner.txt"))
	waitNames(t, e, "..", "inner.txt")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, rootReads, gw.count(root), "old directory must not be re-read")
	assert.Equal(t, sub, e.CurrentDirectory().Get())
}

func TestEngine_WatchDuringSearchKeepsResults(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "alpha.txt"))
	touch(t, filepath.Join(root, "beta.txt"))

	e, _ := newWatchedEngine(t, root)
	waitNames(t, e, "..", "alpha.txt", "beta.txt")

	e.Search("alpha", false)
	waitNames(t, e, "alpha.txt")

	touch(t, filepath.Join(root, "gamma.txt"))
	require.Eventually(t, func() bool {
		return equalStrings(baseNames(e), []string{"..", "alpha.txt", "beta.txt", "gamma.txt"})
	}, waitFor, tick, "base listing never picked up gamma.txt (last %v)", baseNames(e))

	assert.Equal(t, []string{"alpha.txt"}, names(e.Listing().Get()))
	assert.True(t, e.SearchActive().Get())

	e.ClearSearch()
	waitNames(t, e, "..", "alpha.txt", "beta.txt", "gamma.txt")
}
