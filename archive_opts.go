package rangezip

import "log/slog"

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for debug output.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithMinReadSize sets the smallest range fetched when streaming entry
// payloads (default: 4 KiB). Larger values trade bandwidth for fewer
// round trips. Values < 1 are ignored.
func WithMinReadSize(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.minReadSize = n
		}
	}
}

// WithMaxPrefetch caps how many payload bytes are fetched together with an
// entry's local header (default: 8 MiB). Set to 0 to always fetch the whole
// payload with the header.
func WithMaxPrefetch(n int64) Option {
	return func(a *Archive) {
		if n >= 0 {
			a.maxPrefetch = n
		}
	}
}

// WithDefaultPassword sets the password used for encrypted entries when a
// read does not supply one.
func WithDefaultPassword(password string) Option {
	return func(a *Archive) {
		a.password = []byte(password)
	}
}

// WithVerifyOnClose controls whether closing a stream before its end drains
// the remaining content to verify the CRC-32 (default: false).
//
// When false, Close returns without reading the remaining data. Integrity is
// only guaranteed when callers read to EOF.
func WithVerifyOnClose(enabled bool) Option {
	return func(a *Archive) {
		a.verifyOnClose = enabled
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(a *Archive) {
		a.maxDecoderMemory = limit
	}
}

// ReadOption configures a single entry read.
type ReadOption func(*readConfig)

type readConfig struct {
	password    []byte
	passwordSet bool
	progress    ProgressFunc
}

// WithPassword sets the password for an encrypted entry, overriding the
// archive default.
func WithPassword(password string) ReadOption {
	return func(c *readConfig) {
		c.password = []byte(password)
		c.passwordSet = true
	}
}

// WithProgress sets a callback that receives progress updates from Test.
func WithProgress(fn ProgressFunc) ReadOption {
	return func(c *readConfig) {
		c.progress = fn
	}
}

func (a *Archive) readConfig(opts []ReadOption) readConfig {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.passwordSet {
		cfg.password = a.password
	}
	return cfg
}
