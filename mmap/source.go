// Package mmap provides a byte source over a memory-mapped local file.
package mmap

import (
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/mmap"
)

// Source reads a local file through a read-only memory mapping.
// It satisfies rangezip.ByteSource and cache.Source, and is safe for
// concurrent use. Close releases the mapping.
type Source struct {
	r        *mmap.ReaderAt
	path     string
	sourceID string
}

// Open maps the file at path.
//
// The source ID is derived from the path, size and modification time, so a
// rewritten file gets a new identity in block caches.
func Open(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("mmap %s: not a regular file", path)
	}
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	id := digest.FromString(fmt.Sprintf("file:%s|size:%d|mod:%d", path, info.Size(), info.ModTime().UnixNano()))
	return &Source{r: r, path: path, sourceID: "file:" + id.String()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

// Size returns the length of the mapped file.
func (s *Source) Size() int64 {
	return int64(s.r.Len())
}

// SourceID returns a stable identifier for the mapped file version.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Path returns the mapped file path.
func (s *Source) Path() string {
	return s.path
}

// Close unmaps the file.
func (s *Source) Close() error {
	return s.r.Close()
}
