// Package memory provides an in-memory block cache with adaptive
// replacement.
package memory

import (
	"errors"

	"github.com/hashicorp/golang-lru/arc/v2"

	"github.com/meigma/rangezip/cache"
)

// DefaultBlocks is the default capacity in blocks. With the default block
// size this is 16 MiB.
const DefaultBlocks = 256

var _ cache.BlockCache = (*Cache)(nil)

// Cache implements cache.BlockCache with an ARC cache holding a fixed
// number of blocks. ARC keeps the hot archive tail resident even while a
// large entry is streamed through the cache. The cache is safe for
// concurrent use.
type Cache struct {
	arc *arc.ARCCache[string, []byte]
}

// New creates a cache holding at most blocks blocks.
func New(blocks int) (*Cache, error) {
	if blocks <= 0 {
		return nil, errors.New("memory cache: capacity must be > 0")
	}
	c, err := arc.NewARC[string, []byte](blocks)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: c}, nil
}

// Get returns the block stored under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.arc.Get(key)
}

// Put stores a block under key, evicting another block when full.
// The cache keeps data; callers must not modify it afterwards.
func (c *Cache) Put(key string, data []byte) error {
	c.arc.Add(key, data)
	return nil
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	return c.arc.Len()
}

// Purge drops every cached block.
func (c *Cache) Purge() {
	c.arc.Purge()
}
