package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangezip/cache"
	"github.com/meigma/rangezip/internal/testutil"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, err := New(2)
	require.NoError(t, err)

	require.NoError(t, c.Put("a", []byte("alpha")))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("alpha"), got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheEvicts(t *testing.T) {
	t.Parallel()

	c, err := New(2)
	require.NoError(t, err)

	require.NoError(t, c.Put("a", []byte("1")))
	require.NoError(t, c.Put("b", []byte("2")))
	require.NoError(t, c.Put("c", []byte("3")))
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestNewInvalid(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	require.Error(t, err)
}

func TestCacheWrap(t *testing.T) {
	t.Parallel()

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	src := testutil.NewMockByteSource(data)
	c, err := New(DefaultBlocks)
	require.NoError(t, err)
	cached, err := cache.Wrap(src, c, cache.WithBlockSize(128))
	require.NoError(t, err)

	buf := make([]byte, 100)
	for range 3 {
		n, err := cached.ReadAt(buf, 200)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, data[200:300], buf)
	}
	assert.Equal(t, 2, src.Reads(), "one fetch per block")
	assert.Equal(t, 2, c.Len())
}
