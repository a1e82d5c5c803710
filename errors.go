package rangezip

import "github.com/meigma/rangezip/internal/ziptype"

// Sentinel errors re-exported from internal/ziptype.
var (
	// ErrNotAZip is returned when no end of central directory record is found.
	ErrNotAZip = ziptype.ErrNotAZip

	// ErrCorruptDirectory is returned when the central directory cannot be parsed.
	ErrCorruptDirectory = ziptype.ErrCorruptDirectory

	// ErrInconsistentEntry is returned when a local file header disagrees
	// with the central directory.
	ErrInconsistentEntry = ziptype.ErrInconsistentEntry

	// ErrUnsupportedMethod is returned when an entry cannot be decoded.
	ErrUnsupportedMethod = ziptype.ErrUnsupportedMethod

	// ErrBadPassword is returned when the password check byte does not match.
	ErrBadPassword = ziptype.ErrBadPassword

	// ErrPasswordRequired is returned when an encrypted entry is opened without a password.
	ErrPasswordRequired = ziptype.ErrPasswordRequired

	// ErrCRCMismatch is returned at end of stream when the checksum is wrong.
	ErrCRCMismatch = ziptype.ErrCRCMismatch

	// ErrMultiDisk is returned for archives spanning multiple disks.
	ErrMultiDisk = ziptype.ErrMultiDisk

	// ErrDecompression is returned when a payload cannot be decoded.
	ErrDecompression = ziptype.ErrDecompression

	// ErrSizeOverflow is returned when byte counts exceed declared or supported limits.
	ErrSizeOverflow = ziptype.ErrSizeOverflow

	// ErrInsecurePath is returned when an entry has no safe extraction path.
	ErrInsecurePath = ziptype.ErrInsecurePath
)

// Structured error types re-exported from internal/ziptype.
type (
	// FormatError reports a structural problem at a known position.
	FormatError = ziptype.FormatError

	// CRCError reports a checksum mismatch detected at end of stream.
	CRCError = ziptype.CRCError

	// UnsupportedMethodError reports the method that prevented an entry from opening.
	UnsupportedMethodError = ziptype.UnsupportedMethodError

	// SourceError wraps an I/O failure returned by the byte source.
	SourceError = ziptype.SourceError
)
