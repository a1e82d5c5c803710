package ziptype

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for archive operations.
var (
	// ErrNotAZip is returned when no end of central directory record is found.
	ErrNotAZip = errors.New("rangezip: not a zip file")

	// ErrCorruptDirectory is returned when the central directory cannot be parsed.
	ErrCorruptDirectory = errors.New("rangezip: corrupt central directory")

	// ErrInconsistentEntry is returned when a local file header disagrees
	// with the central directory.
	ErrInconsistentEntry = errors.New("rangezip: inconsistent entry")

	// ErrUnsupportedMethod is returned when an entry uses a compression
	// method that cannot be streamed.
	ErrUnsupportedMethod = errors.New("rangezip: unsupported compression method")

	// ErrBadPassword is returned when the encryption header check byte does not match.
	ErrBadPassword = errors.New("rangezip: bad password")

	// ErrPasswordRequired is returned when an encrypted entry is opened without a password.
	ErrPasswordRequired = errors.New("rangezip: password required")

	// ErrCRCMismatch is returned at end of stream when the content checksum is wrong.
	ErrCRCMismatch = errors.New("rangezip: crc-32 mismatch")

	// ErrMultiDisk is returned for archives spanning multiple disks.
	ErrMultiDisk = errors.New("rangezip: multi-disk archives are not supported")

	// ErrDecompression is returned when the compressed payload cannot be decoded.
	ErrDecompression = errors.New("rangezip: decompression failed")

	// ErrSizeOverflow is returned when byte counts exceed declared or supported limits.
	ErrSizeOverflow = errors.New("rangezip: size overflow")

	// ErrInsecurePath is returned when an entry name has no safe extraction path.
	ErrInsecurePath = errors.New("rangezip: insecure path")
)

// FormatError reports a structural problem at a known position in the archive.
type FormatError struct {
	Op     string // operation, e.g. "read directory"
	Name   string // entry name, if known
	Offset int64  // absolute offset of the offending structure, or -1
	Detail string // human readable specifics, e.g. expected vs actual
	Err    error  // sentinel
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// CRCError reports a checksum mismatch detected at end of stream.
type CRCError struct {
	Name     string
	Expected uint32
	Actual   uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("read %q: %v: expected %08x, got %08x", e.Name, ErrCRCMismatch, e.Expected, e.Actual)
}

func (e *CRCError) Unwrap() error { return ErrCRCMismatch }

// UnsupportedMethodError reports the method that prevented an entry from opening.
type UnsupportedMethodError struct {
	Name   string
	Method Method
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("open %q: %v %d (%s)", e.Name, ErrUnsupportedMethod, uint16(e.Method), e.Method)
}

func (e *UnsupportedMethodError) Unwrap() error { return ErrUnsupportedMethod }

// SourceError wraps an I/O failure returned by the byte source.
type SourceError struct {
	Offset int64
	Length int64
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read range [%d, %d): %v", e.Offset, e.Offset+e.Length, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
