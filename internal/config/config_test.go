package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	m := NewManager()
	require.NoError(t, m.Load(path))
	assert.FileExists(t, path)
	assert.NoError(t, m.ParseError())

	cfg := m.Get()
	assert.Equal(t, DefaultProtectedPatterns, cfg.ProtectedPatterns)
	assert.Equal(t, 200*time.Millisecond, cfg.WatchDebounce.Duration)
	assert.True(t, cfg.Watch)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
start_directory = "/sdcard"
storage_roots = ["/storage/emulated/0", "/storage/ABCD-1234"]
watch = false
watch_debounce = "500ms"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("EXPLORER_START_DIRECTORY", "/storage/emulated/0/Download")
	t.Setenv("EXPLORER_PROTECTED_PATTERNS", "/secret/**,/vault/**")
	t.Setenv("EXPLORER_LOG_DEVELOPMENT", "true")

	m := NewManager()
	require.NoError(t, m.Load(path))
	cfg := m.Get()

	assert.Equal(t, "/storage/emulated/0/Download", cfg.StartDirectory)
	assert.Equal(t, []string{"/storage/emulated/0", "/storage/ABCD-1234"}, cfg.StorageRoots)
	assert.Equal(t, []string{"/secret/**", "/vault/**"}, cfg.ProtectedPatterns)
	assert.False(t, cfg.Watch)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_ParseErrorKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("start_directory = [unterminated"), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(path))
	assert.Error(t, m.ParseError())
	assert.Equal(t, DefaultConfig().RegistryPath, m.Get().RegistryPath)
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewManager()
	cfg := m.Get()
	cfg.ProtectedPatterns[0] = "mutated"
	assert.Equal(t, DefaultProtectedPatterns[0], m.Get().ProtectedPatterns[0])
}
