package format

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/rangezip/internal/ziptype"
)

var sigEndBytes = []byte{'P', 'K', 5, 6}

// LocateEnd finds the end of central directory record and reconciles it with
// the ZIP64 end record when one is present.
//
// The last MaxCommentLen+EndLen bytes are fetched in one request. An archive
// without a comment is recognized from the final EndLen bytes; otherwise the
// window is searched backwards for the signature. A signature occurring inside
// the archive comment can be mistaken for the record; the format offers no way
// to rule that out.
func LocateEnd(src io.ReaderAt, size int64, log *slog.Logger) (*ziptype.EndRecord, *Tail, error) {
	const op = "locate end record"
	if size < EndLen {
		return nil, nil, formatErr(op, "", -1, ziptype.ErrNotAZip, fmt.Sprintf("source is %d bytes", size))
	}

	tailOff := max(size-(MaxCommentLen+EndLen), 0)
	data, err := Fetch(src, tailOff, int(size-tailOff))
	if err != nil {
		return nil, nil, err
	}
	if int64(len(data)) != size-tailOff {
		return nil, nil, formatErr(op, "", tailOff, ziptype.ErrNotAZip,
			fmt.Sprintf("short read: got %d of %d bytes", len(data), size-tailOff))
	}
	tail := &Tail{Data: data, Offset: tailOff}

	start := len(data) - EndLen
	last := data[start:]
	if le.Uint32(last) != SigEnd || last[20] != 0 || last[21] != 0 {
		start = bytes.LastIndex(data, sigEndBytes)
		if start < 0 {
			return nil, nil, formatErr(op, "", -1, ziptype.ErrNotAZip, "end of central directory signature not found")
		}
		if start+EndLen > len(data) {
			return nil, nil, formatErr(op, "", tailOff+int64(start), ziptype.ErrNotAZip, "truncated end of central directory record")
		}
	}

	rec := decodeEnd(data[start : start+EndLen])
	commentStart := start + EndLen
	commentEnd := min(commentStart+int(le.Uint16(data[start+20:])), len(data))
	rec.Comment = bytes.Clone(data[commentStart:commentEnd])
	rec.Location = tailOff + int64(start)

	log.Debug("located end record",
		"offset", rec.Location,
		"entries", rec.EntriesTotal,
		"directory_offset", rec.DirectoryOffset,
		"directory_size", rec.DirectorySize,
		"comment_len", len(rec.Comment),
	)

	if err := readEnd64(src, tail, rec, log); err != nil {
		return nil, nil, err
	}
	return rec, tail, nil
}

func decodeEnd(b []byte) *ziptype.EndRecord {
	return &ziptype.EndRecord{
		DiskNumber:      uint32(le.Uint16(b[4:])),
		DiskStart:       uint32(le.Uint16(b[6:])),
		EntriesThisDisk: uint64(le.Uint16(b[8:])),
		EntriesTotal:    uint64(le.Uint16(b[10:])),
		DirectorySize:   uint64(le.Uint32(b[12:])),
		DirectoryOffset: uint64(le.Uint32(b[16:])),
	}
}

// readEnd64 overlays the ZIP64 end record onto rec. Missing or unreadable
// ZIP64 structures leave rec unchanged; a multi-disk locator is an error.
func readEnd64(src io.ReaderAt, tail *Tail, rec *ziptype.EndRecord, log *slog.Logger) error {
	locOff := rec.Location - End64LocatorLen
	if locOff < 0 {
		return nil
	}
	loc, err := tail.read(src, locOff, End64LocatorLen)
	if err != nil {
		return err
	}
	if len(loc) < End64LocatorLen || le.Uint32(loc) != SigEnd64Locator {
		return nil
	}

	disk := le.Uint32(loc[4:])
	disks := le.Uint32(loc[16:])
	if disk != 0 || disks != 1 {
		return formatErr("locate zip64 end record", "", locOff, ziptype.ErrMultiDisk,
			fmt.Sprintf("end record on disk %d of %d", disk, disks))
	}

	// Assumes no zip64 extensible data sector.
	endOff := locOff - End64Len
	if endOff < 0 {
		return nil
	}
	b, err := tail.read(src, endOff, End64Len)
	if err != nil {
		return err
	}
	if len(b) < End64Len || le.Uint32(b) != SigEnd64 {
		return nil
	}

	rec.DiskNumber = le.Uint32(b[16:])
	rec.DiskStart = le.Uint32(b[20:])
	rec.EntriesThisDisk = le.Uint64(b[24:])
	rec.EntriesTotal = le.Uint64(b[32:])
	rec.DirectorySize = le.Uint64(b[40:])
	rec.DirectoryOffset = le.Uint64(b[48:])
	rec.Zip64 = true

	log.Debug("applied zip64 end record",
		"offset", endOff,
		"entries", rec.EntriesTotal,
		"directory_offset", rec.DirectoryOffset,
		"directory_size", rec.DirectorySize,
	)
	return nil
}
