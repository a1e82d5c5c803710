package ziptype

import (
	"io/fs"
	"strings"
	"time"
)

// Entry describes one file or directory recorded in the central directory.
//
// Entries are immutable once the directory has been parsed.
type Entry struct {
	// Name is the decoded entry name, truncated at the first NUL byte.
	Name string

	// RawName is the name exactly as stored in the central directory.
	// The local file header must carry identical bytes.
	RawName []byte

	// NameEncoding records how RawName was decoded into Name.
	NameEncoding NameEncoding

	// Modified is the DOS modification timestamp.
	Modified DOSTime

	// Method is the compression method.
	Method Method

	// CRC32 is the IEEE checksum of the uncompressed content.
	CRC32 uint32

	// CompressedSize is the stored payload size, including any
	// 12 byte encryption header.
	CompressedSize uint64

	// UncompressedSize is the size of the decoded content.
	UncompressedSize uint64

	// HeaderOffset is the absolute offset of the local file header
	// in the byte source, corrected by the concatenation offset.
	HeaderOffset uint64

	// Flags is the general purpose bit flag.
	Flags Flags

	// Comment is the per-entry comment.
	Comment []byte

	// Extra is the raw central directory extra field.
	Extra []byte

	// Zip64 holds the parsed ZIP64 extended information, if present.
	Zip64 *Zip64Extra

	CreatorVersion     uint16
	ReaderVersion      uint16
	InternalAttributes uint16
	ExternalAttributes uint32
}

// Zip64Extra holds the 64-bit values found in a 0x0001 extra sub-record,
// in the order they were stored.
type Zip64Extra struct {
	Values []uint64
}

const (
	creatorFAT  = 0
	creatorUnix = 3
	creatorNTFS = 10
	creatorVFAT = 14
	creatorOSX  = 19

	msdosDir      = 0x10
	msdosReadOnly = 0x01

	unixIFMT  = 0o170000
	unixIFDIR = 0o040000
	unixIFLNK = 0o120000
	unixIFREG = 0o100000
)

// IsDir reports whether the entry denotes a directory.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Encrypted reports whether the entry payload is encrypted.
func (e *Entry) Encrypted() bool {
	return e.Flags.Has(FlagEncrypted)
}

// ModTime returns the modification time as a time.Time in UTC.
func (e *Entry) ModTime() time.Time {
	return e.Modified.Time()
}

// Mode derives file mode bits from the external attributes.
func (e *Entry) Mode() fs.FileMode {
	var mode fs.FileMode
	switch e.CreatorVersion >> 8 {
	case creatorUnix, creatorOSX:
		mode = unixMode(e.ExternalAttributes >> 16)
	case creatorFAT, creatorNTFS, creatorVFAT:
		mode = msdosMode(e.ExternalAttributes)
	}
	if e.IsDir() {
		mode |= fs.ModeDir
	}
	if mode.Perm() == 0 {
		if mode.IsDir() {
			mode |= 0o755
		} else {
			mode |= 0o644
		}
	}
	return mode
}

func unixMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	switch m & unixIFMT {
	case unixIFDIR:
		mode |= fs.ModeDir
	case unixIFLNK:
		mode |= fs.ModeSymlink
	case unixIFREG, 0:
	default:
		mode |= fs.ModeIrregular
	}
	return mode
}

func msdosMode(attr uint32) fs.FileMode {
	var mode fs.FileMode
	if attr&msdosDir != 0 {
		mode = fs.ModeDir | 0o755
	} else {
		mode = 0o644
	}
	if attr&msdosReadOnly != 0 {
		mode &^= 0o222
	}
	return mode
}
