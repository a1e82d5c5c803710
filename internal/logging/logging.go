// Package logging configures slog for the command line tool.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Setup builds a logger writing colored text to w and installs it as the
// slog default. If logOutputDir is non-empty, logs are also written as JSON
// to a timestamped file in that directory. The returned function closes the
// log file.
func Setup(w io.Writer, levelStr, logOutputDir string) (*slog.Logger, func() error, error) {
	level := ParseLevel(levelStr)
	consoleHandler := tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.TimeOnly})

	if logOutputDir == "" {
		logger := slog.New(consoleHandler)
		slog.SetDefault(logger)
		return logger, func() error { return nil }, nil
	}

	logDir := os.ExpandEnv(logOutputDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log output directory: %w", err)
	}

	name := fmt.Sprintf("rangezip_%s.log", time.Now().Format("20060102_150405"))
	logFile, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("create log file: %w", err)
	}

	fileHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level})
	logger := slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
	slog.SetDefault(logger)
	return logger, logFile.Close, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
