package log

import (
	"regexp"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerCategories(t *testing.T) {
	t.Parallel()
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := New(base, false, nil)

	logger.Debugf("cdp:recv", "got %d bytes", 512)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "cdp:recv", entries[0].Data["category"])
	assert.Equal(t, "got 512 bytes", entries[0].Message)
	assert.Contains(t, entries[0].Data, "elapsed")
}

func TestLoggerLevelGate(t *testing.T) {
	t.Parallel()
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)
	logger := New(base, false, nil)

	logger.Debugf("trace", "dropped")
	logger.Warnf("session", "kept")

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestLoggerDebugOverride(t *testing.T) {
	t.Parallel()
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)
	logger := New(base, true, nil)

	logger.Debugf("trace", "forced through")

	require.Len(t, hook.AllEntries(), 1)
}

func TestLoggerCategoryFilter(t *testing.T) {
	t.Parallel()
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := New(base, false, regexp.MustCompile(`^session`))

	logger.Debugf("cdp:send", "dropped")
	logger.Debugf("session", "kept")

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "session", entries[0].Data["category"])

	require.NoError(t, logger.SetCategoryFilter(""))
	logger.Debugf("cdp:send", "now kept")
	assert.Len(t, hook.AllEntries(), 2)

	assert.Error(t, logger.SetCategoryFilter("("))
}

func TestLoggerConcurrentReconfiguration(t *testing.T) {
	t.Parallel()
	base, _ := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := New(base, false, nil)

	// Reconfiguring the filter while other goroutines log must be safe.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.Debugf("cdp:recv", "message %d", j)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		require.NoError(t, logger.SetCategoryFilter(`^session`))
		require.NoError(t, logger.SetCategoryFilter(""))
		require.NoError(t, logger.SetLevel("info"))
		require.NoError(t, logger.SetLevel("debug"))
	}
	wg.Wait()
}

func TestLoggerSetLevel(t *testing.T) {
	t.Parallel()
	logger := NewNullLogger()
	require.NoError(t, logger.SetLevel("debug"))
	assert.True(t, logger.DebugMode())

	require.NoError(t, logger.SetLevel("warning"))
	assert.False(t, logger.DebugMode())

	assert.Error(t, logger.SetLevel("chatty"))
}
