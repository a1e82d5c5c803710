package rangezip

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/rangezip/internal/format"
	"github.com/meigma/rangezip/internal/sizing"
)

// OpenEntry validates the entry's local header and returns a stream of its
// decoded content.
//
// Unsupported methods and missing passwords are reported before anything is
// fetched. The returned stream verifies the CRC-32 when it reaches the end of
// the content and reports a mismatch as a *CRCError from that final Read.
// Callers must Close the stream.
func (a *Archive) OpenEntry(entry *Entry, opts ...ReadOption) (*EntryStream, error) {
	cfg := a.readConfig(opts)
	return a.reader.Open(entry, cfg.password, a.verifyOnClose)
}

// ReadEntry reads and verifies the whole content of entry.
func (a *Archive) ReadEntry(entry *Entry, opts ...ReadOption) ([]byte, error) {
	s, err := a.OpenEntry(entry, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	data, err := sizing.ReadAll(s, entry.UncompressedSize)
	if err != nil {
		if err == ErrSizeOverflow { //nolint:errorlint // bare sentinel from sizing
			return nil, fmt.Errorf("read %s: %w", entry.Name, err)
		}
		return nil, err
	}
	return data, nil
}

// Test reads every entry in central directory order and verifies its
// content. It returns the name of the first entry whose content is corrupt,
// or "" when every entry passes. Failures that say nothing about the
// content, such as source errors or a missing password, abort the run and
// are returned with the name of the entry being read.
func (a *Archive) Test(opts ...ReadOption) (string, error) {
	cfg := a.readConfig(opts)
	total := len(a.entries)
	for i, e := range a.entries {
		if cfg.progress != nil {
			cfg.progress(ProgressEvent{
				Stage:        StageTesting,
				Name:         e.Name,
				BytesTotal:   e.UncompressedSize,
				EntriesDone:  i,
				EntriesTotal: total,
			})
		}
		_, err := a.ReadEntry(e, opts...)
		if err == nil {
			continue
		}
		if isCorrupt(err) {
			a.log().Debug("entry failed verification", "name", e.Name, "error", err)
			return e.Name, nil
		}
		return e.Name, err
	}
	return "", nil
}

func isCorrupt(err error) bool {
	return errors.Is(err, ErrCRCMismatch) ||
		errors.Is(err, ErrDecompression) ||
		errors.Is(err, ErrInconsistentEntry) ||
		errors.Is(err, ErrSizeOverflow)
}

// IsZip reports whether src ends with a readable end of central directory
// record. It does not parse the central directory.
func IsZip(src ByteSource) bool {
	_, _, err := format.LocateEnd(src, src.Size(), slog.New(slog.DiscardHandler))
	return err == nil
}
