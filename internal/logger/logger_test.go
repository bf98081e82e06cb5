package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"Warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"off", LevelNone},
		{" info ", LevelInfo},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNewLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "pathguard.log")

	l, err := New(LevelInfo, logPath, "sandbox")
	require.NoError(t, err)

	l.Info("resolved %s", "/srv/project/main.go")
	l.Debug("should not appear")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "[INFO] [sandbox] resolved /srv/project/main.go")
	assert.NotContains(t, text, "should not appear")
}

func TestWithPrefixSharesDestination(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriter(LevelDebug, &buf, "tools")

	parent.WithPrefix("fs").Warn("denied %q", "../etc/passwd")

	assert.Contains(t, buf.String(), `[WARN] [tools:fs] denied "../etc/passwd"`)
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "", "test")
	require.NoError(t, err)

	// These should not panic
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")
	assert.NoError(t, l.Close())
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelInfo, &buf, "")

	l.Debug("debug1")
	l.SetLevel(LevelDebug)
	l.Debug("debug2")

	assert.NotContains(t, buf.String(), "debug1")
	assert.Contains(t, buf.String(), "debug2")
	assert.Equal(t, LevelDebug, l.GetLevel())
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(NewWriter(LevelWarn, &buf, ""))
	t.Cleanup(func() { SetGlobal(NewWriter(LevelNone, nil, "")) })

	Info("quiet")
	Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelInfo, &buf, "audit")
	slogger := NewSlog(l).With("store", "sqlite").WithGroup("entry")

	slogger.Debug("hidden")
	slogger.Info("recorded", "path", "/srv/a b", "allowed", false)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	line := strings.TrimSpace(out)
	assert.Contains(t, line, "[INFO] [audit] recorded")
	assert.Contains(t, line, "store=sqlite")
	assert.Contains(t, line, `entry.path="/srv/a b"`)
	assert.Contains(t, line, "entry.allowed=false")
}

func TestNewSlogNil(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlog(nil))
	assert.Nil(t, NewSlogHandler(nil))
}
