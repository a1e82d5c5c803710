package sizing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangezip/internal/ziptype"
)

func TestInt64(t *testing.T) {
	t.Parallel()

	v, err := Int64(5_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000_000), v)

	_, err = Int64(math.MaxUint64)
	assert.ErrorIs(t, err, ziptype.ErrSizeOverflow)
}

func TestSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		off     uint64
		length  uint64
		want    int64
		wantErr bool
	}{
		{name: "small", off: 30, length: 100, want: 130},
		{name: "at limit", off: math.MaxInt64 - 1, length: 1, want: math.MaxInt64},
		{name: "past int64", off: math.MaxInt64, length: 1, wantErr: true},
		{name: "wraps", off: math.MaxUint64, length: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Span(tt.off, tt.length)
			if tt.wantErr {
				assert.ErrorIs(t, err, ziptype.ErrSizeOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 64)

	got, err := ReadAll(bytes.NewReader(data), 64)
	require.NoError(t, err)
	assert.Len(t, got, 64)

	_, err = ReadAll(bytes.NewReader(data), 63)
	assert.ErrorIs(t, err, ziptype.ErrSizeOverflow)

	got, err = ReadAll(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Len(t, got, 64)
}
