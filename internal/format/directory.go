package format

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/rangezip/internal/sizing"
	"github.com/meigma/rangezip/internal/ziptype"
)

const opDirectory = "read central directory"

// Directory is the parsed central directory.
type Directory struct {
	// Entries are in central directory order.
	Entries []*ziptype.Entry

	// ConcatOffset is the number of bytes the archive is displaced from the
	// offsets it records, for example by a prepended stub.
	ConcatOffset int64

	// Start is the absolute offset of the first central directory record.
	Start int64
}

// ReadDirectory parses every central directory record described by end.
// The tail window from LocateEnd is used when it covers the directory.
func ReadDirectory(src io.ReaderAt, end *ziptype.EndRecord, tail *Tail, log *slog.Logger) (*Directory, error) {
	size, err := sizing.Int64(end.DirectorySize)
	if err != nil {
		return nil, formatErr(opDirectory, "", end.Location, ziptype.ErrCorruptDirectory,
			fmt.Sprintf("directory size %d", end.DirectorySize))
	}
	offset, err := sizing.Int64(end.DirectoryOffset)
	if err != nil {
		return nil, formatErr(opDirectory, "", end.Location, ziptype.ErrCorruptDirectory,
			fmt.Sprintf("directory offset %d", end.DirectoryOffset))
	}

	concat := end.Location - size - offset
	if end.Zip64 {
		concat -= End64Len + End64LocatorLen
	}
	start := offset + concat
	if start < 0 || start+size > end.Location {
		return nil, formatErr(opDirectory, "", start, ziptype.ErrCorruptDirectory,
			fmt.Sprintf("directory [%d, %d) lies outside the archive ending at %d", start, start+size, end.Location))
	}

	data, reused := tail.Slice(start, size)
	if !reused {
		data, err = Fetch(src, start, int(size))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != size {
			return nil, formatErr(opDirectory, "", start, ziptype.ErrCorruptDirectory,
				fmt.Sprintf("short read: got %d of %d bytes", len(data), size))
		}
	}
	log.Debug("read central directory",
		"offset", start,
		"size", size,
		"concat_offset", concat,
		"from_tail", reused,
	)

	entries := make([]*ziptype.Entry, 0, min(end.EntriesTotal, uint64(size/CentralHeaderLen)))
	pos := 0
	for i := 0; pos < len(data); i++ {
		recOff := start + int64(pos)
		rest := data[pos:]
		if len(rest) < CentralHeaderLen {
			return nil, formatErr(opDirectory, "", recOff, ziptype.ErrCorruptDirectory,
				fmt.Sprintf("record %d: truncated fixed header (%d bytes left)", i, len(rest)))
		}
		if sig := le.Uint32(rest); sig != SigCentralHeader {
			return nil, formatErr(opDirectory, "", recOff, ziptype.ErrCorruptDirectory,
				fmt.Sprintf("record %d: signature %08x, want %08x", i, sig, SigCentralHeader))
		}
		recLen := CentralHeaderLen + int(le.Uint16(rest[28:])) + int(le.Uint16(rest[30:])) + int(le.Uint16(rest[32:]))
		if recLen > len(rest) {
			return nil, formatErr(opDirectory, "", recOff, ziptype.ErrCorruptDirectory,
				fmt.Sprintf("record %d: %d bytes overrun the directory by %d", i, recLen, recLen-len(rest)))
		}

		e, err := decodeCentral(rest[:recLen], concat)
		if err != nil {
			return nil, formatErr(opDirectory, e.Name, recOff, ziptype.ErrCorruptDirectory,
				fmt.Sprintf("record %d: %v", i, err))
		}
		entries = append(entries, e)
		pos += recLen
	}
	if int64(pos) != size {
		return nil, formatErr(opDirectory, "", start, ziptype.ErrCorruptDirectory,
			fmt.Sprintf("records span %d bytes, directory size is %d", pos, size))
	}

	if uint64(len(entries)) != end.EntriesTotal {
		log.Warn("central directory entry count mismatch",
			"declared", end.EntriesTotal,
			"parsed", len(entries),
		)
	}
	return &Directory{Entries: entries, ConcatOffset: concat, Start: start}, nil
}

// decodeCentral decodes one complete record. The returned entry is non-nil
// even on error so callers can report its name.
func decodeCentral(b []byte, concat int64) (*ziptype.Entry, error) {
	nameLen := int(le.Uint16(b[28:]))
	extraLen := int(le.Uint16(b[30:]))
	commentLen := int(le.Uint16(b[32:]))

	nameEnd := CentralHeaderLen + nameLen
	extraEnd := nameEnd + extraLen

	e := &ziptype.Entry{
		CreatorVersion:     le.Uint16(b[4:]),
		ReaderVersion:      le.Uint16(b[6:]),
		Flags:              ziptype.Flags(le.Uint16(b[8:])),
		Method:             ziptype.Method(le.Uint16(b[10:])),
		Modified:           ziptype.DecodeDOSTime(le.Uint16(b[14:]), le.Uint16(b[12:])),
		CRC32:              le.Uint32(b[16:]),
		CompressedSize:     uint64(le.Uint32(b[20:])),
		UncompressedSize:   uint64(le.Uint32(b[24:])),
		InternalAttributes: le.Uint16(b[36:]),
		ExternalAttributes: le.Uint32(b[38:]),
		HeaderOffset:       uint64(le.Uint32(b[42:])),
		RawName:            bytes.Clone(b[CentralHeaderLen:nameEnd]),
		Extra:              bytes.Clone(b[nameEnd:extraEnd]),
		Comment:            bytes.Clone(b[extraEnd : extraEnd+commentLen]),
	}
	e.Name, e.NameEncoding = DecodeName(e.RawName, e.Flags)

	if err := applyZip64(e); err != nil {
		return e, err
	}

	off, err := sizing.Int64(e.HeaderOffset)
	if err != nil || off+concat < 0 {
		return e, fmt.Errorf("local header offset %d with concatenation offset %d", e.HeaderOffset, concat)
	}
	e.HeaderOffset = uint64(off + concat)
	return e, nil
}

// applyZip64 replaces sentinel sizes and offsets with the values from the
// ZIP64 extended information sub-record.
func applyZip64(e *ziptype.Entry) error {
	extra := e.Extra
	for len(extra) >= 4 {
		id := le.Uint16(extra)
		n := int(le.Uint16(extra[2:]))
		if 4+n > len(extra) {
			if id == zip64ExtraID {
				return fmt.Errorf("zip64 extra field declares %d bytes, %d present", n, len(extra)-4)
			}
			return nil
		}
		body := extra[4 : 4+n]
		extra = extra[4+n:]
		if id != zip64ExtraID {
			continue
		}

		var count int
		switch {
		case n >= 24:
			count = 3
		case n == 16:
			count = 2
		case n == 8:
			count = 1
		case n == 0:
			count = 0
		default:
			return fmt.Errorf("zip64 extra field length %d", n)
		}
		values := make([]uint64, count)
		for i := range values {
			values[i] = le.Uint64(body[i*8:])
		}
		e.Zip64 = &ziptype.Zip64Extra{Values: values}

		next := 0
		take := func(field *uint64, what string) error {
			if *field != sentinel32 {
				return nil
			}
			if next >= len(values) {
				return fmt.Errorf("zip64 extra field has %d values, missing %s", len(values), what)
			}
			*field = values[next]
			next++
			return nil
		}
		if err := take(&e.UncompressedSize, "uncompressed size"); err != nil {
			return err
		}
		if err := take(&e.CompressedSize, "compressed size"); err != nil {
			return err
		}
		if err := take(&e.HeaderOffset, "header offset"); err != nil {
			return err
		}
	}
	return nil
}
