// Package file opens entry payloads as verified streams.
package file

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/rangezip/internal/format"
	"github.com/meigma/rangezip/internal/zipcrypto"
	"github.com/meigma/rangezip/internal/ziptype"
)

const (
	// DefaultMinReadSize is the smallest range fetched for payload bytes.
	DefaultMinReadSize = 4 << 10

	// DefaultMaxPrefetch caps the payload bytes fetched with the local header.
	DefaultMaxPrefetch = 8 << 20

	// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// Reader opens entry streams over a byte source.
// It is safe for concurrent use when the source is.
type Reader struct {
	src         io.ReaderAt
	size        int64
	minRead     int
	maxPrefetch int64
	maxDecMem   uint64
	log         *slog.Logger

	zstd    *DecompressPool
	inflate *InflatePool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMinReadSize sets the smallest range fetched for payload bytes.
// Values below 1 are ignored.
func WithMinReadSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.minRead = n
		}
	}
}

// WithMaxPrefetch caps the payload bytes fetched together with the local
// header. Zero prefetches the whole payload.
func WithMaxPrefetch(n int64) Option {
	return func(r *Reader) {
		if n >= 0 {
			r.maxPrefetch = n
		}
	}
}

// WithMaxDecoderMemory sets the maximum zstd decoder memory limit.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Reader) {
		r.maxDecMem = limit
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) {
		r.log = log
	}
}

// NewReader creates a Reader for entries stored in src, which is size bytes long.
func NewReader(src io.ReaderAt, size int64, opts ...Option) *Reader {
	r := &Reader{
		src:         src,
		size:        size,
		minRead:     DefaultMinReadSize,
		maxPrefetch: DefaultMaxPrefetch,
		maxDecMem:   DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	r.zstd = NewDecompressPool(r.maxDecMem)
	r.inflate = NewInflatePool()
	return r
}

// Open validates e against its local header and returns a stream of its
// decoded content. password is required for encrypted entries and ignored
// otherwise. With verifyOnClose, closing the stream early drains and checks
// the remaining content.
func (r *Reader) Open(e *ziptype.Entry, password []byte, verifyOnClose bool) (*Stream, error) {
	if err := checkOpenable(e, password); err != nil {
		return nil, err
	}

	if err := checkPayloadSize(e); err != nil {
		return nil, err
	}

	h, err := format.ReadLocalHeader(r.src, r.size, e, r.maxPrefetch)
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", e.Name, err)
	}
	compressed := int64(e.CompressedSize) //nolint:gosec // bounded by ReadLocalHeader
	chunks := newChunkReader(r.src, h.DataOffset, compressed, h.Payload, r.minRead)

	if e.Encrypted() {
		if err := unlock(chunks, e, password); err != nil {
			return nil, err
		}
	}

	s := &Stream{
		entry:         *e,
		remaining:     e.UncompressedSize,
		verifyOnClose: verifyOnClose,
		release:       func() {},
	}
	switch e.Method {
	case ziptype.Stored:
		s.r = chunks
	case ziptype.Deflated:
		s.r, s.release = r.inflate.Get(chunks)
	case ziptype.Zstd:
		dec, release, err := r.zstd.Get(chunks)
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w: %v", e.Name, ziptype.ErrDecompression, err)
		}
		s.r, s.release = dec, release
	}

	r.log.Debug("opened entry",
		"name", e.Name,
		"method", e.Method.String(),
		"data_offset", h.DataOffset,
		"compressed", e.CompressedSize,
		"uncompressed", e.UncompressedSize,
		"prefetched", len(h.Payload),
		"encrypted", e.Encrypted(),
	)
	return s, nil
}

// checkOpenable rejects entries that cannot be streamed before any fetch.
func checkOpenable(e *ziptype.Entry, password []byte) error {
	if !e.Method.Supported() || e.Flags.Has(ziptype.FlagStrongEncryption) {
		return &ziptype.UnsupportedMethodError{Name: e.Name, Method: e.Method}
	}
	if e.Encrypted() && len(password) == 0 {
		return fmt.Errorf("open entry %s: %w", e.Name, ziptype.ErrPasswordRequired)
	}
	return nil
}

// checkPayloadSize checks the compressed size, less any encryption header,
// against the uncompressed size of stored entries.
func checkPayloadSize(e *ziptype.Entry) error {
	size := e.CompressedSize
	if e.Encrypted() {
		if size < zipcrypto.HeaderLen {
			return &ziptype.FormatError{
				Op: "open entry", Name: e.Name, Offset: -1, Err: ziptype.ErrInconsistentEntry,
				Detail: fmt.Sprintf("compressed size %d is smaller than the encryption header", size),
			}
		}
		size -= zipcrypto.HeaderLen
	}
	if e.Method == ziptype.Stored && size != e.UncompressedSize {
		return &ziptype.FormatError{
			Op: "open entry", Name: e.Name, Offset: -1, Err: ziptype.ErrInconsistentEntry,
			Detail: fmt.Sprintf("stored entry has %d payload bytes but %d uncompressed", size, e.UncompressedSize),
		}
	}
	return nil
}

// unlock consumes and checks the encryption header, then switches chunks
// to decrypting the payload.
func unlock(chunks *chunkReader, e *ziptype.Entry, password []byte) error {
	var header [zipcrypto.HeaderLen]byte
	if _, err := io.ReadFull(chunks, header[:]); err != nil {
		var serr *ziptype.SourceError
		if errors.As(err, &serr) {
			return fmt.Errorf("open entry %s: %w", e.Name, err)
		}
		return fmt.Errorf("open entry %s: %w: encryption header: %v", e.Name, ziptype.ErrInconsistentEntry, err)
	}
	d := zipcrypto.New(password)
	if err := d.CheckHeader(header, zipcrypto.CheckByte(e)); err != nil {
		return fmt.Errorf("open entry %s: %w", e.Name, err)
	}
	chunks.setDecryptor(d)
	return nil
}
