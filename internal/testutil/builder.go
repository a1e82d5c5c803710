package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/rangezip/internal/zipcrypto"
	"github.com/meigma/rangezip/internal/ziptype"
)

// FixtureTime and FixtureDate are the DOS timestamp used when a File leaves
// them unset: 2024-03-15 10:30:20.
const (
	FixtureTime uint16 = 10<<11 | 30<<5 | 10
	FixtureDate uint16 = (2024-1980)<<9 | 3<<5 | 15
)

// File describes one entry written by Builder.
type File struct {
	Name    string
	Data    []byte
	Method  ziptype.Method
	Comment string

	// Password encrypts the entry with ZipCrypto when non-empty.
	Password string

	// DataDescriptor sets flag bit 3, zeroes CRC and sizes in the local
	// header, and writes a data descriptor after the payload.
	DataDescriptor bool

	UTF8 bool

	// RawName overrides the stored name bytes.
	RawName []byte

	// DOSTime and DOSDate override the fixture timestamp.
	DOSTime uint16
	DOSDate uint16

	CreatorVersion     uint16
	ExternalAttributes uint32

	// Zip64 stores sizes and offset as sentinels with the real values in a
	// 0x0001 extra sub-record.
	Zip64 bool

	// DeclaredSize overrides the uncompressed size recorded in the central
	// directory.
	DeclaredSize uint64

	// Tampering applied to the local header only.
	LocalName   []byte
	LocalMethod *ziptype.Method
	LocalCRC    *uint32
	LocalExtra  []byte

	// CentralExtra is appended to the central directory extra field.
	CentralExtra []byte
}

// Builder assembles ZIP archives record by record so tests can produce
// structures that standard writers refuse to emit.
type Builder struct {
	// Prefix is written before the archive; recorded offsets do not count it.
	Prefix []byte

	Comment []byte

	// Zip64End writes a ZIP64 end record and locator with sentinel values in
	// the plain end record.
	Zip64End bool

	// Locator overrides for multi-disk tests. LocatorDisks of 0 means 1.
	LocatorDisk  uint32
	LocatorDisks uint32

	// DeclaredEntries overrides the entry count in the end records when non-zero.
	DeclaredEntries int

	files []File
}

// Add appends a file.
func (b *Builder) Add(f File) *Builder {
	b.files = append(b.files, f)
	return b
}

// Built is an assembled archive with the positions tests need.
type Built struct {
	Data []byte

	// HeaderOffsets and DataOffsets are absolute positions in Data.
	HeaderOffsets []int64
	DataOffsets   []int64

	// CompressedSizes include any encryption header.
	CompressedSizes []int
	CRCs            []uint32

	DirectoryOffset int64
	EndOffset       int64
}

type centralRecord struct {
	f       File
	name    []byte
	flags   uint16
	crc     uint32
	csize   uint64
	usize   uint64
	offset  uint64
	dosTime uint16
	dosDate uint16
}

var le = binary.LittleEndian

// Build assembles the archive.
func (b *Builder) Build(tb testing.TB) *Built {
	tb.Helper()

	var out bytes.Buffer
	out.Write(b.Prefix)
	base := int64(len(b.Prefix))

	res := &Built{}
	records := make([]centralRecord, 0, len(b.files))
	for _, f := range b.files {
		name := []byte(f.Name)
		if f.RawName != nil {
			name = f.RawName
		}
		tm, date := f.DOSTime, f.DOSDate
		if tm == 0 && date == 0 {
			tm, date = FixtureTime, FixtureDate
		}

		crc := crc32.ChecksumIEEE(f.Data)
		payload := compress(tb, f.Method, f.Data)

		var flags uint16
		if f.DataDescriptor {
			flags |= uint16(ziptype.FlagDataDescriptor)
		}
		if f.UTF8 {
			flags |= uint16(ziptype.FlagUTF8)
		}
		if f.Password != "" {
			flags |= uint16(ziptype.FlagEncrypted)
			var header [zipcrypto.HeaderLen]byte
			for i := range header {
				header[i] = byte(i*31 + 7)
			}
			if f.DataDescriptor {
				header[zipcrypto.HeaderLen-1] = byte(tm >> 8)
			} else {
				header[zipcrypto.HeaderLen-1] = byte(crc >> 24)
			}
			enc := append(header[:], payload...)
			zipcrypto.NewEncryptor([]byte(f.Password)).Encrypt(enc)
			payload = enc
		}

		rec := centralRecord{
			f:       f,
			name:    name,
			flags:   flags,
			crc:     crc,
			csize:   uint64(len(payload)),
			usize:   uint64(len(f.Data)),
			offset:  uint64(int64(out.Len()) - base),
			dosTime: tm,
			dosDate: date,
		}
		if f.DeclaredSize != 0 {
			rec.usize = f.DeclaredSize
		}

		res.HeaderOffsets = append(res.HeaderOffsets, int64(out.Len()))
		writeLocal(&out, rec)
		res.DataOffsets = append(res.DataOffsets, int64(out.Len()))
		out.Write(payload)
		if f.DataDescriptor {
			var dd [16]byte
			le.PutUint32(dd[0:], 0x08074b50)
			le.PutUint32(dd[4:], crc)
			le.PutUint32(dd[8:], uint32(rec.csize))
			le.PutUint32(dd[12:], uint32(len(f.Data)))
			out.Write(dd[:])
		}
		res.CompressedSizes = append(res.CompressedSizes, len(payload))
		res.CRCs = append(res.CRCs, crc)
		records = append(records, rec)
	}

	cdStart := int64(out.Len())
	res.DirectoryOffset = cdStart
	for _, rec := range records {
		writeCentral(&out, rec)
	}
	cdSize := uint64(int64(out.Len()) - cdStart)
	cdOffset := uint64(cdStart - base)

	entries := uint64(len(records))
	if b.DeclaredEntries != 0 {
		entries = uint64(b.DeclaredEntries)
	}

	if b.Zip64End {
		end64 := uint64(int64(out.Len()) - base)
		var rec [56]byte
		le.PutUint32(rec[0:], 0x06064b50)
		le.PutUint64(rec[4:], 44)
		le.PutUint16(rec[12:], 45)
		le.PutUint16(rec[14:], 45)
		le.PutUint64(rec[24:], entries)
		le.PutUint64(rec[32:], entries)
		le.PutUint64(rec[40:], cdSize)
		le.PutUint64(rec[48:], cdOffset)
		out.Write(rec[:])

		disks := b.LocatorDisks
		if disks == 0 {
			disks = 1
		}
		var loc [20]byte
		le.PutUint32(loc[0:], 0x07064b50)
		le.PutUint32(loc[4:], b.LocatorDisk)
		le.PutUint64(loc[8:], end64)
		le.PutUint32(loc[16:], disks)
		out.Write(loc[:])
	}

	res.EndOffset = int64(out.Len())
	var end [22]byte
	le.PutUint32(end[0:], 0x06054b50)
	if b.Zip64End {
		le.PutUint16(end[8:], 0xFFFF)
		le.PutUint16(end[10:], 0xFFFF)
		le.PutUint32(end[12:], 0xFFFFFFFF)
		le.PutUint32(end[16:], 0xFFFFFFFF)
	} else {
		le.PutUint16(end[8:], uint16(entries))
		le.PutUint16(end[10:], uint16(entries))
		le.PutUint32(end[12:], uint32(cdSize))
		le.PutUint32(end[16:], uint32(cdOffset))
	}
	le.PutUint16(end[20:], uint16(len(b.Comment)))
	out.Write(end[:])
	out.Write(b.Comment)

	res.Data = out.Bytes()
	return res
}

func compress(tb testing.TB, method ziptype.Method, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	switch method {
	case ziptype.Deflated:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			tb.Fatalf("flate writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			tb.Fatalf("deflate: %v", err)
		}
		if err := w.Close(); err != nil {
			tb.Fatalf("deflate close: %v", err)
		}
		return buf.Bytes()
	case ziptype.Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			tb.Fatalf("zstd writer: %v", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	default:
		return append([]byte(nil), data...)
	}
}

func writeLocal(out *bytes.Buffer, rec centralRecord) {
	f := rec.f
	name := rec.name
	if f.LocalName != nil {
		name = f.LocalName
	}
	method := f.Method
	if f.LocalMethod != nil {
		method = *f.LocalMethod
	}
	crc, csize, usize := rec.crc, uint32(rec.csize), uint32(len(f.Data))
	if f.DataDescriptor {
		crc, csize, usize = 0, 0, 0
	}
	if f.LocalCRC != nil {
		crc = *f.LocalCRC
	}
	extra := f.LocalExtra
	if f.Zip64 {
		var z [20]byte
		le.PutUint16(z[0:], 0x0001)
		le.PutUint16(z[2:], 16)
		le.PutUint64(z[4:], uint64(len(f.Data)))
		le.PutUint64(z[12:], rec.csize)
		extra = append(z[:], extra...)
		csize, usize = 0xFFFFFFFF, 0xFFFFFFFF
	}

	var h [30]byte
	le.PutUint32(h[0:], 0x04034b50)
	le.PutUint16(h[4:], version(f))
	le.PutUint16(h[6:], rec.flags)
	le.PutUint16(h[8:], uint16(method))
	le.PutUint16(h[10:], rec.dosTime)
	le.PutUint16(h[12:], rec.dosDate)
	le.PutUint32(h[14:], crc)
	le.PutUint32(h[18:], csize)
	le.PutUint32(h[22:], usize)
	le.PutUint16(h[26:], uint16(len(name)))
	le.PutUint16(h[28:], uint16(len(extra)))
	out.Write(h[:])
	out.Write(name)
	out.Write(extra)
}

func writeCentral(out *bytes.Buffer, rec centralRecord) {
	f := rec.f
	csize, usize, offset := uint32(rec.csize), uint32(rec.usize), uint32(rec.offset)

	var extra []byte
	if f.Zip64 {
		z := make([]byte, 28)
		le.PutUint16(z[0:], 0x0001)
		le.PutUint16(z[2:], 24)
		le.PutUint64(z[4:], rec.usize)
		le.PutUint64(z[12:], rec.csize)
		le.PutUint64(z[20:], rec.offset)
		extra = z
		csize, usize, offset = 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF
	}
	extra = append(extra, f.CentralExtra...)

	creator := f.CreatorVersion
	if creator == 0 {
		creator = 3<<8 | version(f)
	}

	var h [46]byte
	le.PutUint32(h[0:], 0x02014b50)
	le.PutUint16(h[4:], creator)
	le.PutUint16(h[6:], version(f))
	le.PutUint16(h[8:], rec.flags)
	le.PutUint16(h[10:], uint16(f.Method))
	le.PutUint16(h[12:], rec.dosTime)
	le.PutUint16(h[14:], rec.dosDate)
	le.PutUint32(h[16:], rec.crc)
	le.PutUint32(h[20:], csize)
	le.PutUint32(h[24:], usize)
	le.PutUint16(h[28:], uint16(len(rec.name)))
	le.PutUint16(h[30:], uint16(len(extra)))
	le.PutUint16(h[32:], uint16(len(f.Comment)))
	le.PutUint32(h[38:], f.ExternalAttributes)
	le.PutUint32(h[42:], offset)
	out.Write(h[:])
	out.Write(rec.name)
	out.Write(extra)
	out.WriteString(f.Comment)
}

func version(f File) uint16 {
	if f.Zip64 {
		return 45
	}
	return 20
}
