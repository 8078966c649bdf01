package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override, e.g. EXPLORER_START_DIRECTORY.
const EnvPrefix = "EXPLORER"

// Config holds all user-configurable settings loaded from config.toml
type Config struct {
	StartDirectory       string    `toml:"start_directory" envconfig:"START_DIRECTORY"`
	StorageRoots         []string  `toml:"storage_roots" envconfig:"STORAGE_ROOTS"`
	ProtectedPatterns    []string  `toml:"protected_patterns" envconfig:"PROTECTED_PATTERNS"`
	RegistryPath         string    `toml:"registry_path" envconfig:"REGISTRY_PATH"`
	RegistryPollInterval Duration  `toml:"registry_poll_interval" envconfig:"REGISTRY_POLL_INTERVAL"`
	Watch                bool      `toml:"watch" envconfig:"WATCH"`
	WatchDebounce        Duration  `toml:"watch_debounce" envconfig:"WATCH_DEBOUNCE"`
	MetricsAddr          string    `toml:"metrics_addr" envconfig:"METRICS_ADDR"`
	Log                  LogConfig `toml:"log" envconfig:"LOG"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `toml:"level" envconfig:"LEVEL"`
	Development bool   `toml:"development" envconfig:"DEVELOPMENT"`
}

// Duration reads and writes "1.5s" style strings in TOML and the environment.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultProtectedPatterns cover application-private storage.
var DefaultProtectedPatterns = []string{
	"/data/data/**",
	"/data/user/**",
	"/data/user_de/**",
	"**/Android/data/**",
	"**/Android/obb/**",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StartDirectory:       home,
		StorageRoots:         nil, // detected at startup
		ProtectedPatterns:    append([]string(nil), DefaultProtectedPatterns...),
		RegistryPath:         filepath.Join(home, ".config", "explorer", "apps.db"),
		RegistryPollInterval: Duration{2 * time.Second},
		Watch:                true,
		WatchDebounce:        Duration{200 * time.Millisecond},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigPath is the default location of the config file.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "explorer", "config.toml")
}

// Manager handles loading and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // set when the file failed to parse and defaults are in use
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// Load reads path (ConfigPath() when empty), writing a default file if
// none exists, then applies environment overrides. A malformed file is
// not fatal: defaults are used and ParseError reports why.
func (m *Manager) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if path == "" {
		path = ConfigPath()
	}
	m.path = path
	m.parseErr = nil
	m.config = DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		debug.Log(debug.APP, "config: creating default config at %s", path)
		if err := m.saveUnlocked(); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read config %s: %w", path, err)
	default:
		cfg := DefaultConfig()
		if err := toml.Unmarshal(data, cfg); err != nil {
			debug.Warn(debug.APP, "config: parse error in %s: %v", path, err)
			m.parseErr = err
		} else {
			m.config = cfg
		}
	}

	if err := envconfig.Process(EnvPrefix, m.config); err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}
	if len(m.config.StorageRoots) == 0 {
		m.config.StorageRoots = fs.StorageRoots()
	}
	debug.Log(debug.APP, "config: loaded from %s", path)
	return nil
}

func (m *Manager) saveUnlocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration back to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	cfg := *m.config
	cfg.StorageRoots = append([]string(nil), m.config.StorageRoots...)
	cfg.ProtectedPatterns = append([]string(nil), m.config.ProtectedPatterns...)
	return cfg
}

// ParseError returns the error from the last Load, if the file was malformed.
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// Path returns the file the configuration was loaded from.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}
