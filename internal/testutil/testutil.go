// Package testutil provides in-memory sources, caches and a raw ZIP record
// builder for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// Range is one ReadAt request observed by MockByteSource.
type Range struct {
	Off int64
	Len int
}

// MockByteSource implements a simple in-memory byte source for tests.
// It records every ReadAt call and can inject failures.
type MockByteSource struct {
	data     []byte
	sourceID string

	mu     sync.Mutex
	ranges []Range
	fail   func(off int64, n int) error
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.ranges = append(m.ranges, Range{Off: off, Len: len(p)})
	fail := m.fail
	m.mu.Unlock()

	if fail != nil {
		if err := fail(off, len(p)); err != nil {
			return 0, err
		}
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ranges)
}

// Ranges returns a copy of the requests observed so far.
func (m *MockByteSource) Ranges() []Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Range(nil), m.ranges...)
}

// Reset clears the recorded requests.
func (m *MockByteSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges = nil
}

// FailWith installs fn, which is consulted before every read. A non-nil
// result is returned from ReadAt. Passing nil removes the hook.
func (m *MockByteSource) FailWith(fn func(off int64, n int) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// MockBlockCache implements a basic concurrency-safe block cache for tests.
type MockBlockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	gets int
	hits int
}

// NewMockBlockCache constructs an empty in-memory cache.
func NewMockBlockCache() *MockBlockCache {
	return &MockBlockCache{data: make(map[string][]byte)}
}

// Get retrieves a block by key.
func (c *MockBlockCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.data[key]
	if ok {
		c.hits++
	}
	return data, ok
}

// Put stores a block by key.
func (c *MockBlockCache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), data...)
	return nil
}

// Len returns the number of cached blocks.
func (c *MockBlockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns the number of Get calls that found a block.
func (c *MockBlockCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}
