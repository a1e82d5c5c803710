package rangezip

import (
	"context"
	"runtime"
)

// ExtractOption configures Extract and ExtractAll.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	ctx           context.Context
	password      []byte
	passwordSet   bool
	workers       int
	preserveMode  bool
	preserveTimes bool
	windows       bool
	progress      ProgressFunc
}

func newExtractConfig(opts []ExtractOption) *extractConfig {
	cfg := &extractConfig{
		ctx:     context.Background(),
		windows: runtime.GOOS == "windows",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ExtractWithContext sets a context that cancels the extraction between reads.
func ExtractWithContext(ctx context.Context) ExtractOption {
	return func(c *extractConfig) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// ExtractWithPassword sets the password for encrypted entries, overriding
// the archive default.
func ExtractWithPassword(password string) ExtractOption {
	return func(c *extractConfig) {
		c.password = []byte(password)
		c.passwordSet = true
	}
}

// ExtractWithWorkers sets the number of entries ExtractAll extracts in
// parallel. Values < 2 extract serially. Parallel extraction requires a
// source that supports concurrent ReadAt calls.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithPreserveMode applies the permission bits recorded in the
// archive. By default, files use umask defaults.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = preserve
	}
}

// ExtractWithPreserveTimes applies the modification times recorded in the
// archive. By default, files use the current time.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveTimes = preserve
	}
}

// ExtractWithWindowsNames controls whether entry names are sanitized for
// Windows: drive prefixes removed, reserved characters replaced, and
// trailing dots stripped. It defaults to true when running on Windows.
func ExtractWithWindowsNames(enabled bool) ExtractOption {
	return func(c *extractConfig) {
		c.windows = enabled
	}
}

// ExtractWithProgress sets a callback that receives progress updates.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}
