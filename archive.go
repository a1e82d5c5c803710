package rangezip

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/meigma/rangezip/internal/file"
	"github.com/meigma/rangezip/internal/format"
	"github.com/meigma/rangezip/internal/index"
	"github.com/meigma/rangezip/internal/ziptype"
)

// ByteSource provides random access to the archive bytes.
//
// ReadAt may return fewer than len(p) bytes only at the end of the source,
// together with io.EOF. Implementations exist for HTTP range requests
// (package http), memory-mapped files (package mmap) and block caches
// (package cache). *os.File satisfies it through io.NewSectionReader.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Archive is an opened ZIP archive.
//
// The central directory is parsed once by Open; entry content is fetched on
// demand. An Archive is immutable and safe for concurrent use when its
// source supports concurrent ReadAt calls.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS, and fs.ReadDirFS
// for compatibility with the standard library.
type Archive struct {
	src     ByteSource
	end     ziptype.EndRecord
	concat  int64
	entries []*Entry
	idx     *index.Index
	reader  *file.Reader

	password         []byte
	verifyOnClose    bool
	minReadSize      int
	maxPrefetch      int64
	maxDecoderMemory uint64
	logger           *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open parses the archive metadata of src.
//
// Open fetches the tail of the source to find the end of central directory
// record and reads the central directory, reusing the tail when it already
// covers the directory. No entry content is read. The source is not owned by
// the archive and is never closed by it.
func Open(src ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{
		src:              src,
		minReadSize:      file.DefaultMinReadSize,
		maxPrefetch:      file.DefaultMaxPrefetch,
		maxDecoderMemory: file.DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(a)
	}
	log := a.log()

	size := src.Size()
	end, tail, err := format.LocateEnd(src, size, log)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	dir, err := format.ReadDirectory(src, end, tail, log)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a.end = *end
	a.concat = dir.ConcatOffset
	a.entries = dir.Entries
	a.idx = index.New(dir.Entries)
	a.reader = file.NewReader(src, size,
		file.WithMinReadSize(a.minReadSize),
		file.WithMaxPrefetch(a.maxPrefetch),
		file.WithMaxDecoderMemory(a.maxDecoderMemory),
		file.WithLogger(log),
	)

	log.Debug("opened archive",
		"size", size,
		"entries", len(a.entries),
		"zip64", end.Zip64,
		"concat_offset", a.concat,
	)
	return a, nil
}

// Entries returns the entries in central directory order.
// The slice is a copy; the entries themselves are shared and must not be modified.
func (a *Archive) Entries() []*Entry {
	return slices.Clone(a.entries)
}

// All returns an iterator over the entries in central directory order.
func (a *Archive) All() iter.Seq[*Entry] {
	return slices.Values(a.entries)
}

// Find returns the entry recorded under name. When the central directory
// lists a name more than once, the last record wins.
func (a *Archive) Find(name string) (*Entry, bool) {
	return a.idx.Lookup(name)
}

// Names returns the entry names in central directory order, duplicates included.
func (a *Archive) Names() []string {
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Comment returns the archive comment.
func (a *Archive) Comment() []byte {
	return bytes.Clone(a.end.Comment)
}

// EndRecord returns the end of central directory record, with ZIP64 values
// applied when present.
func (a *Archive) EndRecord() EndRecord {
	end := a.end
	end.Comment = bytes.Clone(end.Comment)
	return end
}

// ConcatOffset returns the number of bytes the archive is displaced from the
// offsets it records, for example by a self-extracting stub prepended to it.
func (a *Archive) ConcatOffset() int64 {
	return a.concat
}

// Len returns the number of central directory records.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Size returns the size of the underlying source in bytes.
func (a *Archive) Size() int64 {
	return a.src.Size()
}
