// Package debug provides a centralized, categorized debug logging system
// on top of zap. Each category is a named child of the root logger.
package debug

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a debug logging category
type Category string

const (
	APP    Category = "APP"    // Engine lifecycle and orchestration
	NAV    Category = "NAV"    // Navigation, listing composition and publication
	SELECT Category = "SELECT" // Selection toggles, merges and clears
	SEARCH Category = "SEARCH" // Search sessions and jobs
	FS     Category = "FS"     // Filesystem reads
	STORE  Category = "STORE"  // App registry store

	// Verbose, disabled by default
	FS_WALK Category = "FS_WALK" // Every node visited during recursive search
)

var (
	enabledCategories = map[Category]bool{
		APP:     true,
		NAV:     true,
		SELECT:  true,
		SEARCH:  true,
		FS:      true,
		STORE:   true,
		FS_WALK: false,
	}
	categoryMu sync.RWMutex

	root    = zap.NewNop()
	loggers = map[Category]*zap.SugaredLogger{}
)

func init() {
	applyEnv(os.Getenv("EXPLORER_DEBUG"))
}

// applyEnv handles EXPLORER_DEBUG=all, EXPLORER_DEBUG=none or a comma
// separated list such as EXPLORER_DEBUG=NAV,SEARCH.
func applyEnv(env string) {
	if env == "" {
		return
	}
	categoryMu.Lock()
	defer categoryMu.Unlock()

	env = strings.ToUpper(env)
	switch env {
	case "ALL":
		for cat := range enabledCategories {
			enabledCategories[cat] = true
		}
	case "NONE":
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
	default:
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
		for _, cat := range strings.Split(env, ",") {
			enabledCategories[Category(strings.TrimSpace(cat))] = true
		}
	}
}

// Init builds the root zap logger. Development mode uses the console
// encoder, otherwise output is JSON.
func Init(level string, development bool) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !development

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces the root logger. Tests pass zaptest or observer loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	categoryMu.Lock()
	root = l
	loggers = map[Category]*zap.SugaredLogger{}
	categoryMu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() {
	categoryMu.RLock()
	l := root
	categoryMu.RUnlock()
	_ = l.Sync()
}

func logger(cat Category) *zap.SugaredLogger {
	categoryMu.RLock()
	l, ok := loggers[cat]
	categoryMu.RUnlock()
	if ok {
		return l
	}

	categoryMu.Lock()
	defer categoryMu.Unlock()
	if l, ok = loggers[cat]; !ok {
		l = root.Named(string(cat)).Sugar()
		loggers[cat] = l
	}
	return l
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	if !IsEnabled(cat) {
		return
	}
	logger(cat).Debugf(format, args...)
}

// Logw logs a debug message with structured key/value fields for the
// specified category.
func Logw(cat Category, msg string, keysAndValues ...interface{}) {
	if !IsEnabled(cat) {
		return
	}
	logger(cat).Debugw(msg, keysAndValues...)
}

// Warn logs regardless of whether the category is enabled.
func Warn(cat Category, format string, args ...interface{}) {
	logger(cat).Warnf(format, args...)
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// ListEnabled returns a slice of currently enabled categories
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}
