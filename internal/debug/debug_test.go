package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func resetCategories(t *testing.T) {
	t.Helper()
	saved := map[Category]bool{}
	categoryMu.RLock()
	for k, v := range enabledCategories {
		saved[k] = v
	}
	categoryMu.RUnlock()
	t.Cleanup(func() {
		categoryMu.Lock()
		enabledCategories = saved
		categoryMu.Unlock()
		SetLogger(nil)
	})
}

func TestApplyEnv(t *testing.T) {
	testCases := []struct {
		env     string
		enabled []Category
		off     []Category
	}{
		{"all", []Category{APP, FS_WALK, SEARCH}, nil},
		{"none", nil, []Category{APP, NAV, SEARCH}},
		{"nav, search", []Category{NAV, SEARCH}, []Category{APP, FS, STORE}},
	}

	for _, tc := range testCases {
		t.Run(tc.env, func(t *testing.T) {
			resetCategories(t)
			applyEnv(tc.env)
			for _, c := range tc.enabled {
				assert.True(t, IsEnabled(c), "%s should be enabled", c)
			}
			for _, c := range tc.off {
				assert.False(t, IsEnabled(c), "%s should be disabled", c)
			}
		})
	}
}

func TestLogRespectsCategories(t *testing.T) {
	resetCategories(t)
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))

	Enable(NAV)
	Disable(FS_WALK)
	Log(NAV, "moved to %s", "/sdcard")
	Log(FS_WALK, "visited %s", "/sdcard/a")
	Warn(FS_WALK, "always shown")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "moved to /sdcard", entries[0].Message)
	assert.Equal(t, "NAV", entries[0].LoggerName)
	assert.Equal(t, "always shown", entries[1].Message)
}

func TestInitRejectsBadLevel(t *testing.T) {
	resetCategories(t)
	require.Error(t, Init("loud", false))
	require.NoError(t, Init("debug", true))
}

func TestLogwFields(t *testing.T) {
	resetCategories(t)
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))

	Enable(SEARCH)
	Logw(SEARCH, "search job started", "job", "1234", "recursive", true)
	Disable(SEARCH)
	Logw(SEARCH, "dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "SEARCH", entries[0].LoggerName)
	assert.Equal(t, map[string]interface{}{"job": "1234", "recursive": true}, entries[0].ContextMap())
}
