// Package sizing provides overflow-checked arithmetic for 64-bit archive
// sizes and offsets read from untrusted headers.
package sizing

import (
	"io"
	"math"

	"github.com/meigma/rangezip/internal/ziptype"
)

// Int converts a declared size to int, failing with ErrSizeOverflow
// when it cannot be addressed in memory.
func Int(size uint64) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, ziptype.ErrSizeOverflow
	}
	return int(size), nil
}

// Int64 converts a declared size or offset to int64, failing with
// ErrSizeOverflow when it exceeds the io.ReaderAt offset range.
func Int64(size uint64) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, ziptype.ErrSizeOverflow
	}
	return int64(size), nil
}

// Add returns a+b, or false when the sum wraps.
func Add(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Span returns off+length as int64 after checking that neither the operands
// nor the sum overflow.
func Span(off, length uint64) (int64, error) {
	end, ok := Add(off, length)
	if !ok {
		return 0, ziptype.ErrSizeOverflow
	}
	return Int64(end)
}

// ReadAll reads r to EOF, failing with ErrSizeOverflow once more than
// limit bytes have been produced. A limit of 0 disables the check.
func ReadAll(r io.Reader, limit uint64) ([]byte, error) {
	if limit == 0 {
		return io.ReadAll(r)
	}
	if limit > uint64(math.MaxInt-1) {
		return nil, ziptype.ErrSizeOverflow
	}
	lr := &io.LimitedReader{R: r, N: int64(limit) + 1} //nolint:gosec // checked above
	data, err := io.ReadAll(lr)
	if err != nil {
		return data, err
	}
	if uint64(len(data)) > limit {
		return nil, ziptype.ErrSizeOverflow
	}
	return data, nil
}
