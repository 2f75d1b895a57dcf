package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"datasanitizer/internal/config"
)

func TestLogConvertsKeyValuePairs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Log("WARN", "retrying chunk", "volume", "/dev/sdb", "attempt", 2, "error", errors.New("EIO"), "dangling")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/dev/sdb", ctx["volume"])
	assert.EqualValues(t, 2, ctx["attempt"])
	assert.Equal(t, "EIO", ctx["error"])
	assert.Equal(t, "(missing)", ctx["dangling"])
}

func TestNamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core)).Named("wipe").With("job", "abc")

	l.Log("DEBUG", "filtered out")
	l.Log("INFO", "pass started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "wipe", entries[0].LoggerName)
	assert.Equal(t, "abc", entries[0].ContextMap()["job"])
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var l *EnterpriseLogger
	l.Log("INFO", "nothing")
	assert.NoError(t, l.Close())
	NewNop().Named("x").With("k", "v").Log("ERROR", "nothing")
}

func TestFileLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "datasanitizer.log")
	cfg.Logging.Structured = true

	l, err := NewEnterpriseLogger(cfg, false)
	require.NoError(t, err)
	l.Log("INFO", "volume enumerated", "count", 3)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"volume enumerated"`), string(data))
}

func TestInvalidLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "LOUD"
	_, err := NewEnterpriseLogger(cfg, false)
	assert.Error(t, err)
}
