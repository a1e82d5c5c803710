// Package cache wraps byte sources with fixed-size block caching.
//
// Archive access is dominated by a few hot ranges: the tail holding the end
// records and central directory, and the local headers of entries that are
// opened repeatedly. Caching those ranges in blocks turns repeated opens of a
// remote archive into local reads. Storage is pluggable through BlockCache;
// see the disk and memory subpackages.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"
)

// Source is a random access byte source with a stable identity.
type Source interface {
	io.ReaderAt

	// Size returns the total size of the source in bytes.
	Size() int64

	// SourceID returns a unique identifier for the source content.
	// It is part of every block key, so it must be stable across calls
	// and change whenever the content changes.
	SourceID() string
}

// BlockCache stores blocks by key.
// Implementations must be safe for concurrent use.
type BlockCache interface {
	// Get returns the block stored under key.
	Get(key string) ([]byte, bool)

	// Put stores a block. Implementations may drop blocks to respect
	// their size limits; a dropped block is not an error.
	Put(key string, data []byte) error
}

// DefaultBlockSize is the default size of a cached block.
const DefaultBlockSize int64 = 64 << 10

// DefaultMaxBlocksPerRead caps the blocks cached for one ReadAt. Entry
// payload streaming issues large sequential reads that would only churn
// the cache.
const DefaultMaxBlocksPerRead = 4

// WrapConfig controls block cache wrapping behavior.
type WrapConfig struct {
	// BlockSize is the size in bytes of each cached block.
	BlockSize int64

	// MaxBlocksPerRead is the maximum number of blocks cached for a single
	// ReadAt call. Reads spanning more blocks bypass the cache.
	// Use 0 to disable the limit.
	MaxBlocksPerRead int

	// Logger receives debug output for hits and misses.
	Logger *slog.Logger
}

// DefaultWrapConfig returns the default block cache configuration.
func DefaultWrapConfig() WrapConfig {
	return WrapConfig{
		BlockSize:        DefaultBlockSize,
		MaxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
}

// WrapOption configures block cache wrapping behavior.
type WrapOption func(*WrapConfig)

// WithBlockSize sets the block size used for caching.
func WithBlockSize(n int64) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.BlockSize = n
	}
}

// WithMaxBlocksPerRead bypasses caching when a ReadAt spans more than n blocks.
// Values <= 0 disable the limit.
func WithMaxBlocksPerRead(n int) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.MaxBlocksPerRead = max(n, 0)
	}
}

// WithLogger sets the logger for hit and miss debug output.
func WithLogger(logger *slog.Logger) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.Logger = logger
	}
}

// CachedSource is a Source whose reads are served in blocks from a BlockCache.
// It is safe for concurrent use when the wrapped source is.
type CachedSource struct {
	src              Source
	cache            BlockCache
	sourceID         string
	blockSize        int64
	maxBlocksPerRead int
	fetchGroup       singleflight.Group
	log              *slog.Logger
}

// Wrap returns a Source that caches reads from src in fixed-size blocks.
func Wrap(src Source, bc BlockCache, opts ...WrapOption) (*CachedSource, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	if bc == nil {
		return nil, errors.New("block cache: cache is nil")
	}
	cfg := DefaultWrapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlockSize <= 0 {
		return nil, errors.New("block cache: block size must be > 0")
	}
	if cfg.BlockSize > math.MaxInt32 {
		return nil, errors.New("block cache: block size exceeds 2 GiB")
	}
	sourceID := src.SourceID()
	if sourceID == "" {
		return nil, errors.New("block cache: source id is empty")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CachedSource{
		src:              src,
		cache:            bc,
		sourceID:         sourceID,
		blockSize:        cfg.BlockSize,
		maxBlocksPerRead: cfg.MaxBlocksPerRead,
		log:              log,
	}, nil
}

// ReadAt implements io.ReaderAt.
func (s *CachedSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	expected := min(int64(len(p)), size-off)
	startBlock := off / s.blockSize
	endBlock := (off + expected - 1) / s.blockSize

	if s.maxBlocksPerRead > 0 && endBlock-startBlock+1 > int64(s.maxBlocksPerRead) {
		return s.src.ReadAt(p, off)
	}

	var n int64
	for index := startBlock; index <= endBlock; index++ {
		blockStart := index * s.blockSize
		blockEnd := min(blockStart+s.blockSize, size)

		data, err := s.block(index, blockStart, blockEnd-blockStart)
		if err != nil {
			return int(n), err
		}

		copyStart := max(off, blockStart)
		copyEnd := min(off+expected, blockEnd)
		n += int64(copy(p[copyStart-off:copyEnd-off], data[copyStart-blockStart:copyEnd-blockStart]))
	}

	if expected < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// Size returns the size of the wrapped source.
func (s *CachedSource) Size() int64 {
	return s.src.Size()
}

// SourceID returns the identifier of the wrapped source.
func (s *CachedSource) SourceID() string {
	return s.sourceID
}

// block returns one block, from the cache when present. Concurrent misses
// for the same block share a single fetch.
func (s *CachedSource) block(index, off, length int64) ([]byte, error) {
	key := BlockKey(s.sourceID, s.blockSize, index)
	if data, ok := s.cache.Get(key); ok && int64(len(data)) == length {
		s.log.Debug("block cache hit", "block", index)
		return data, nil
	}

	result, err, _ := s.fetchGroup.Do(key, func() (any, error) {
		s.log.Debug("block cache miss", "block", index, "offset", off, "length", length)
		buf := make([]byte, length)
		n, err := s.src.ReadAt(buf, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if int64(n) != length {
			return nil, io.ErrUnexpectedEOF
		}
		if err := s.cache.Put(key, buf); err != nil {
			s.log.Debug("block cache put failed", "block", index, "error", err)
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// BlockKey derives the cache key for a block. Keys are hex encoded SHA-256
// digests, safe to use as file names.
func BlockKey(sourceID string, blockSize, index int64) string {
	d := digest.SHA256.Digester()
	h := d.Hash()
	_, _ = h.Write([]byte(sourceID)) //nolint:errcheck // hash writes never fail

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(blockSize)) //nolint:gosec // validated > 0
	binary.BigEndian.PutUint64(buf[8:], uint64(index))     //nolint:gosec // always >= 0
	_, _ = h.Write(buf[:])                                 //nolint:errcheck // hash writes never fail

	return d.Digest().Encoded()
}
