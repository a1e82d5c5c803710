package rangezip

import (
	"github.com/meigma/rangezip/internal/file"
	"github.com/meigma/rangezip/internal/ziptype"
)

// Re-export types from internal/ziptype for public API.
type (
	// Entry describes one file or directory recorded in the central directory.
	Entry = ziptype.Entry

	// EndRecord is the end of central directory record, widened to ZIP64.
	EndRecord = ziptype.EndRecord

	// Method identifies the compression method of an entry.
	Method = ziptype.Method

	// Flags is the general purpose bit flag of an entry.
	Flags = ziptype.Flags

	// NameEncoding records how an entry name was decoded.
	NameEncoding = ziptype.NameEncoding

	// DOSTime is an MS-DOS timestamp as stored in ZIP headers.
	DOSTime = ziptype.DOSTime

	// Zip64Extra holds the values of a ZIP64 extended information field.
	Zip64Extra = ziptype.Zip64Extra

	// EntryStream reads and verifies the content of one entry.
	// It implements fs.File.
	EntryStream = file.Stream
)

// Re-export compression methods.
const (
	Stored   = ziptype.Stored
	Deflated = ziptype.Deflated
	Zstd     = ziptype.Zstd
	AES      = ziptype.AES
)

// Re-export general purpose flags.
const (
	FlagEncrypted        = ziptype.FlagEncrypted
	FlagDataDescriptor   = ziptype.FlagDataDescriptor
	FlagStrongEncryption = ziptype.FlagStrongEncryption
	FlagUTF8             = ziptype.FlagUTF8
)

// Re-export name encodings.
const (
	EncodingCP437 = ziptype.EncodingCP437
	EncodingUTF8  = ziptype.EncodingUTF8
)
