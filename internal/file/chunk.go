package file

import (
	"io"

	"github.com/meigma/rangezip/internal/format"
	"github.com/meigma/rangezip/internal/zipcrypto"
)

// chunkReader serves the compressed payload of one entry. It starts from the
// bytes prefetched with the local header and fetches the rest on demand, at
// least minRead bytes at a time and never past the payload end.
type chunkReader struct {
	src     io.ReaderAt
	next    int64 // absolute offset of the first unfetched byte
	left    int64 // payload bytes not yet fetched
	minRead int

	buf []byte
	pos int

	// dec decrypts each chunk in place once installed.
	dec *zipcrypto.Decryptor
}

func newChunkReader(src io.ReaderAt, dataOffset, size int64, prefetched []byte, minRead int) *chunkReader {
	return &chunkReader{
		src:     src,
		next:    dataOffset + int64(len(prefetched)),
		left:    size - int64(len(prefetched)),
		minRead: minRead,
		buf:     prefetched,
	}
}

// setDecryptor installs d and decrypts the bytes already buffered.
func (c *chunkReader) setDecryptor(d *zipcrypto.Decryptor) {
	c.dec = d
	d.Decrypt(c.buf[c.pos:])
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.pos >= len(c.buf) {
		if err := c.fill(len(p)); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.buf[c.pos:])
	c.pos += n
	return n, nil
}

// ReadByte lets the inflater read without an extra bufio layer.
func (c *chunkReader) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		if err := c.fill(1); err != nil {
			return 0, err
		}
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *chunkReader) fill(want int) error {
	if c.left <= 0 {
		return io.EOF
	}
	n := min(c.left, int64(max(want, c.minRead)))
	buf, err := format.Fetch(c.src, c.next, int(n))
	if err != nil {
		return err
	}
	if int64(len(buf)) < n {
		return io.ErrUnexpectedEOF
	}
	if c.dec != nil {
		c.dec.Decrypt(buf)
	}
	c.buf, c.pos = buf, 0
	c.next += n
	c.left -= n
	return nil
}
