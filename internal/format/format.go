// Package format decodes the on-disk ZIP structures: the end of central
// directory records, central directory file headers and local file headers.
//
// All reads go through Fetch, which issues exactly one ReadAt per range so
// that callers can reason about round trips against remote sources.
package format

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/meigma/rangezip/internal/ziptype"
)

// Record signatures.
const (
	SigLocalHeader   uint32 = 0x04034b50
	SigCentralHeader uint32 = 0x02014b50
	SigEnd           uint32 = 0x06054b50
	SigEnd64         uint32 = 0x06064b50
	SigEnd64Locator  uint32 = 0x07064b50
)

// Fixed record sizes.
const (
	LocalHeaderLen   = 30
	CentralHeaderLen = 46
	EndLen           = 22
	End64LocatorLen  = 20
	End64Len         = 56

	// MaxCommentLen bounds the archive comment and therefore how far from the
	// end of the source the end record can start.
	MaxCommentLen = 1 << 16

	// ExtraSlack is how many bytes a local extra field may exceed the central
	// directory extra field by. Some writers add fields only to local headers.
	ExtraSlack = 128

	zip64ExtraID = 0x0001
	sentinel32   = 0xFFFFFFFF
)

var le = binary.LittleEndian

// Fetch reads [off, off+length) with a single ReadAt call. The result is
// shorter than length only when the source ends first. Any other failure is
// returned as a *ziptype.SourceError.
func Fetch(src io.ReaderAt, off int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	n, err := src.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ziptype.SourceError{Offset: off, Length: int64(length), Err: err}
	}
	return buf[:n], nil
}

// Tail is the window fetched from the end of the source while locating the
// end record. It is reused to avoid round trips for nearby structures.
type Tail struct {
	Data   []byte
	Offset int64
}

// Slice returns [off, off+n) when the window covers it entirely.
func (t *Tail) Slice(off, n int64) ([]byte, bool) {
	if t == nil || off < t.Offset || n < 0 {
		return nil, false
	}
	start := off - t.Offset
	if start+n > int64(len(t.Data)) {
		return nil, false
	}
	return t.Data[start : start+n], true
}

// read returns [off, off+n) from the window when possible, fetching otherwise.
func (t *Tail) read(src io.ReaderAt, off int64, n int) ([]byte, error) {
	if b, ok := t.Slice(off, int64(n)); ok {
		return b, nil
	}
	return Fetch(src, off, n)
}

func formatErr(op, name string, off int64, sentinel error, detail string) error {
	return &ziptype.FormatError{Op: op, Name: name, Offset: off, Detail: detail, Err: sentinel}
}
