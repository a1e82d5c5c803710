package format

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/rangezip/internal/sizing"
	"github.com/meigma/rangezip/internal/ziptype"
)

const opLocal = "read local header"

// LocalHeader is a validated local file header.
type LocalHeader struct {
	// DataOffset is the absolute offset of the first payload byte.
	DataOffset int64

	// Payload is the prefix of the compressed payload that arrived with the
	// header fetch. It never exceeds the entry's compressed size.
	Payload []byte

	Flags  ziptype.Flags
	Method ziptype.Method
	CRC32  uint32
}

// ReadLocalHeader fetches and validates the local header of e in a single
// request that also carries up to maxPrefetch bytes of payload. A
// non-positive maxPrefetch prefetches the whole payload.
func ReadLocalHeader(src io.ReaderAt, size int64, e *ziptype.Entry, maxPrefetch int64) (*LocalHeader, error) {
	start, err := sizing.Int64(e.HeaderOffset)
	if err != nil || start >= size {
		return nil, formatErr(opLocal, e.Name, -1, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("header offset %d beyond source size %d", e.HeaderOffset, size))
	}
	compressed, err := sizing.Int64(e.CompressedSize)
	if err != nil {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("compressed size %d", e.CompressedSize))
	}

	maxExtra := len(e.Extra) + ExtraSlack
	prefetch := compressed
	if maxPrefetch > 0 {
		prefetch = min(prefetch, maxPrefetch)
	}
	window := min(int64(LocalHeaderLen+len(e.RawName)+maxExtra)+prefetch, size-start)
	windowLen, err := sizing.Int(uint64(window))
	if err != nil {
		return nil, err
	}

	buf, err := Fetch(src, start, windowLen)
	if err != nil {
		return nil, err
	}
	if len(buf) < LocalHeaderLen {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("truncated header: %d bytes", len(buf)))
	}
	if sig := le.Uint32(buf); sig != SigLocalHeader {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("signature %08x, want %08x", sig, SigLocalHeader))
	}

	h := &LocalHeader{
		Flags:  ziptype.Flags(le.Uint16(buf[6:])),
		Method: ziptype.Method(le.Uint16(buf[8:])),
		CRC32:  le.Uint32(buf[14:]),
	}
	nameLen := int(le.Uint16(buf[26:]))
	extraLen := int(le.Uint16(buf[28:]))

	if extraLen > maxExtra {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("extra field length %d exceeds %d", extraLen, maxExtra))
	}
	nameEnd := LocalHeaderLen + nameLen
	if nameEnd > len(buf) {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("truncated name: %d of %d bytes", len(buf)-LocalHeaderLen, nameLen))
	}
	if name := buf[LocalHeaderLen:nameEnd]; !bytes.Equal(name, e.RawName) {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("local name %q differs from directory name %q", name, e.RawName))
	}
	if h.Method != e.Method {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("local method %s differs from directory method %s", h.Method, e.Method))
	}
	if !e.Flags.Has(ziptype.FlagDataDescriptor) && h.CRC32 != e.CRC32 {
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("local crc %08x differs from directory crc %08x", h.CRC32, e.CRC32))
	}

	h.DataOffset = start + int64(nameEnd+extraLen)
	if end, err := sizing.Span(uint64(h.DataOffset), e.CompressedSize); err != nil || end > size { //nolint:gosec // DataOffset is non-negative
		return nil, formatErr(opLocal, e.Name, start, ziptype.ErrInconsistentEntry,
			fmt.Sprintf("payload of %d bytes at %d extends past end of source (%d bytes)", compressed, h.DataOffset, size))
	}

	payloadStart := min(nameEnd+extraLen, len(buf))
	payload := buf[payloadStart:]
	if int64(len(payload)) > prefetch {
		payload = payload[:prefetch]
	}
	h.Payload = payload
	return h, nil
}
