package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkipPath(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"/dev", true},
		{"/proc", true},
		{"/sys", true},
		{"/run", true},
		{"/snap", true},
		{"/boot", true},
		{"/lost+found", true},
		{"/dev/null", true},
		{"/proc/1/status", true},

		{"/home", false},
		{"/storage/emulated/0", false},
		{"/data", false},
		{"", false},

		{"/development", false},
		{"/system", false},
		{"/bootstrap", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, shouldSkipPath(tc.path), "shouldSkipPath(%q)", tc.path)
	}
}

// makeTree creates dirs (trailing slash) and files below root.
func makeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		if p[len(p)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("test content"), 0o644))
	}
}

func TestList(t *testing.T) {
	tmpDir := t.TempDir()
	makeTree(t, tmpDir,
		"dir1/", "dir2/", ".hidden_dir/",
		"file1.txt", "file2.go", ".hidden_file",
		"dir1/nested.txt",
	)

	refs, err := NewOSGateway().List(tmpDir)
	require.NoError(t, err)

	byName := make(map[string]FileRef)
	for _, r := range refs {
		byName[r.Name] = r
	}

	assert.Len(t, refs, 6)
	for _, d := range []string{"dir1", "dir2", ".hidden_dir"} {
		require.Contains(t, byName, d)
		assert.True(t, byName[d].IsDir, "%s should be a directory", d)
	}
	for _, f := range []string{"file1.txt", "file2.go", ".hidden_file"} {
		require.Contains(t, byName, f)
		assert.False(t, byName[f].IsDir, "%s should be a file", f)
	}
	assert.True(t, byName[".hidden_dir"].IsHidden)
	assert.True(t, byName[".hidden_file"].IsHidden)
	assert.False(t, byName["file1.txt"].IsHidden)
	assert.NotContains(t, byName, "nested.txt")
	assert.Equal(t, filepath.Join(tmpDir, "file1.txt"), byName["file1.txt"].Path)
}

func TestList_NonExistent(t *testing.T) {
	_, err := NewOSGateway().List("/nonexistent/path/that/does/not/exist")
	require.Error(t, err)

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "/nonexistent/path/that/does/not/exist", readErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestList_File(t *testing.T) {
	tmpDir := t.TempDir()
	makeTree(t, tmpDir, "plain.txt")

	_, err := NewOSGateway().List(filepath.Join(tmpDir, "plain.txt"))
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
}

func TestList_SymlinkHandling(t *testing.T) {
	tmpDir := t.TempDir()
	makeTree(t, tmpDir, "realdir/", "realfile.txt")

	if err := os.Symlink(filepath.Join(tmpDir, "realdir"), filepath.Join(tmpDir, "linkdir")); err != nil {
		t.Skipf("cannot create symlinks: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(tmpDir, "realfile.txt"), filepath.Join(tmpDir, "linkfile.txt")))
	require.NoError(t, os.Symlink(filepath.Join(tmpDir, "missing"), filepath.Join(tmpDir, "broken")))

	refs, err := NewOSGateway().List(tmpDir)
	require.NoError(t, err)

	byName := make(map[string]FileRef)
	for _, r := range refs {
		byName[r.Name] = r
	}
	assert.True(t, byName["linkdir"].IsDir, "symlink to directory should appear as directory")
	assert.False(t, byName["linkfile.txt"].IsDir, "symlink to file should appear as file")
	assert.Contains(t, byName, "broken", "broken symlinks are still listed")
}

func TestRefFields(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("hello world")
	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, content, 0o644))

	g := NewOSGateway()
	ref, err := g.Stat(testFile)
	require.NoError(t, err)

	assert.Equal(t, "test.txt", ref.Name)
	assert.Equal(t, testFile, ref.Path)
	assert.False(t, ref.IsDir)
	assert.Equal(t, int64(len(content)), ref.Size)
	assert.WithinDuration(t, time.Now(), ref.ModTime, time.Minute)

	assert.True(t, g.Exists(testFile))
	assert.False(t, g.Exists(filepath.Join(tmpDir, "nope")))
	assert.True(t, g.IsDirectory(tmpDir))
	assert.False(t, g.IsDirectory(testFile))
	assert.True(t, g.IsHidden(filepath.Join(tmpDir, ".cache")))
	assert.False(t, g.IsHidden(testFile))
}

func TestWalk(t *testing.T) {
	tmpDir := t.TempDir()
	makeTree(t, tmpDir, "a/b/c.txt", "a/d.txt", "e/", ".git/config")

	var (
		mu      sync.Mutex
		visited []string
	)
	err := NewOSGateway().Walk(context.Background(), tmpDir, func(ref FileRef) error {
		rel, _ := filepath.Rel(tmpDir, ref.Path)
		mu.Lock()
		visited = append(visited, rel)
		mu.Unlock()
		if ref.IsDir && ref.IsHidden {
			return filepath.SkipDir
		}
		return nil
	})
	require.NoError(t, err)

	sort.Strings(visited)
	assert.Equal(t, []string{".", ".git", "a", "a/b", "a/b/c.txt", "a/d.txt", "e"}, visited)
}

func TestWalk_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	makeTree(t, tmpDir, "a/1.txt", "a/2.txt", "b/3.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewOSGateway().Walk(ctx, tmpDir, func(ref FileRef) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
