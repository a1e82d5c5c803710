package file

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"

	"github.com/meigma/rangezip/internal/pathutil"
	"github.com/meigma/rangezip/internal/ziptype"
)

type streamState uint8

const (
	stateStreaming streamState = iota
	stateExhausted
	stateFailed
	stateClosed
)

// Stream reads the decoded content of one entry and verifies its CRC-32
// when the end of the content is reached. It is not safe for concurrent use.
type Stream struct {
	entry         ziptype.Entry
	verifyOnClose bool

	r         io.Reader
	release   func()
	crc       uint32
	remaining uint64

	state streamState
	err   error
}

// Interface compliance.
var _ fs.File = (*Stream)(nil)

// Entry returns the entry being read.
func (s *Stream) Entry() *ziptype.Entry {
	return &s.entry
}

// Read implements io.Reader. The final Read that reaches the end of the
// content returns a *ziptype.CRCError instead of io.EOF when the checksum
// does not match.
func (s *Stream) Read(p []byte) (int, error) {
	switch s.state {
	case stateExhausted:
		return 0, io.EOF
	case stateFailed:
		return 0, s.err
	case stateClosed:
		return 0, fs.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.remaining == 0 {
		return 0, s.readExtra()
	}

	if uint64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	if n > 0 {
		s.crc = crc32.Update(s.crc, crc32.IEEETable, p[:n])
		s.remaining -= uint64(n)
	}

	if err == io.EOF {
		if s.remaining != 0 {
			return n, s.fail(fmt.Errorf("read %s: %w: unexpected end of stream, %d bytes missing",
				s.entry.Name, ziptype.ErrDecompression, s.remaining))
		}
		return n, s.verify()
	}
	if err != nil {
		return n, s.fail(s.wrap(err))
	}
	return n, nil
}

// readExtra confirms the decoder has nothing beyond the declared size.
func (s *Stream) readExtra() error {
	var scratch [1]byte
	n, err := s.r.Read(scratch[:])
	if n > 0 {
		return s.fail(fmt.Errorf("read %s: %w: more than %d bytes",
			s.entry.Name, ziptype.ErrSizeOverflow, s.entry.UncompressedSize))
	}
	if err == io.EOF {
		return s.verify()
	}
	if err != nil {
		return s.fail(s.wrap(err))
	}
	return nil
}

func (s *Stream) verify() error {
	if s.crc != s.entry.CRC32 {
		return s.fail(&ziptype.CRCError{Name: s.entry.Name, Expected: s.entry.CRC32, Actual: s.crc})
	}
	s.state = stateExhausted
	return io.EOF
}

func (s *Stream) fail(err error) error {
	s.state = stateFailed
	s.err = err
	return err
}

// wrap classifies a decoder error. Source failures keep their identity;
// anything else means the payload could not be decoded.
func (s *Stream) wrap(err error) error {
	var serr *ziptype.SourceError
	if errors.As(err, &serr) {
		return fmt.Errorf("read %s: %w", s.entry.Name, err)
	}
	return fmt.Errorf("read %s: %w: %v", s.entry.Name, ziptype.ErrDecompression, err)
}

// Stat returns file info.
func (s *Stream) Stat() (fs.FileInfo, error) {
	return NewInfo(&s.entry, pathutil.Base(s.entry.Name))
}

// Close releases the decoder. Closing before the end of the content skips
// the checksum unless the stream was opened with verifyOnClose, in which case
// the remainder is drained and verified.
func (s *Stream) Close() error {
	if s.state == stateClosed {
		return nil
	}
	defer func() {
		s.release()
		s.state = stateClosed
	}()

	if !s.verifyOnClose {
		return nil
	}
	buf := make([]byte, 32*1024)
	for {
		_, err := s.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
