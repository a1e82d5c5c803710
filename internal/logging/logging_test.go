package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"fatal":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

// Setup replaces the slog default, so these tests do not run in parallel.

func TestSetupConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := Setup(&buf, "warn", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	logger.Info("hidden")
	logger.Warn("shown", "entry", "a.txt")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "a.txt")
}

func TestSetupFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, closeFn, err := Setup(&buf, "debug", dir)
	require.NoError(t, err)

	logger.Debug("opened archive", "entries", 3)
	require.NoError(t, closeFn())

	files, err := filepath.Glob(filepath.Join(dir, "rangezip_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "opened archive", rec["msg"])
	assert.InDelta(t, 3, rec["entries"], 0)
	assert.Contains(t, buf.String(), "opened archive")
}
