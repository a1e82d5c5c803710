package rangezip

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/rangezip/internal/file"
	"github.com/meigma/rangezip/internal/pathutil"
)

const extractBufferSize = 32 << 10

// Extract writes entry below destDir and returns the path written.
//
// The entry name is sanitized so that the result always lies inside destDir:
// absolute paths and ".." components are dropped. Missing parent directories
// are created. Directory entries are created as directories. File content is
// written to a temporary file in the target directory and renamed into place,
// so a partially written file is never visible. Existing files are replaced.
func (a *Archive) Extract(entry *Entry, destDir string, opts ...ExtractOption) (string, error) {
	cfg := newExtractConfig(opts)
	return a.extract(entry, destDir, cfg, nil)
}

// ExtractAll extracts every entry below destDir and returns the paths
// written, in entry name order. When a name is recorded more than once only
// the last record is extracted.
func (a *Archive) ExtractAll(destDir string, opts ...ExtractOption) ([]string, error) {
	cfg := newExtractConfig(opts)
	entries := slices.Collect(a.idx.Entries())
	paths := make([]string, len(entries))

	var done atomic.Int64
	total := len(entries)
	counter := func() (int, int) { return int(done.Add(1)), total }

	if cfg.workers < 2 {
		for i, e := range entries {
			p, err := a.extract(e, destDir, cfg, counter)
			if err != nil {
				return paths[:i], err
			}
			paths[i] = p
		}
		return paths, nil
	}

	g, ctx := errgroup.WithContext(cfg.ctx)
	g.SetLimit(cfg.workers)
	wcfg := *cfg
	wcfg.ctx = ctx
	for i, e := range entries {
		g.Go(func() error {
			p, err := a.extract(e, destDir, &wcfg, counter)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// extract writes one entry. counter, when set, reports completed entries
// for progress events.
func (a *Archive) extract(entry *Entry, destDir string, cfg *extractConfig, counter func() (int, int)) (string, error) {
	if err := cfg.ctx.Err(); err != nil {
		return "", err
	}

	rel, err := pathutil.Sanitize(entry.Name, cfg.windows)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	target, err := pathutil.Within(destDir, rel)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}

	if entry.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		a.extracted(entry, cfg, counter)
		return target, nil
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}

	readOpts := []ReadOption{}
	if cfg.passwordSet {
		readOpts = append(readOpts, WithPassword(string(cfg.password)))
	}
	s, err := a.OpenEntry(entry, readOpts...)
	if err != nil {
		return "", err
	}
	defer s.Close()

	if err := a.writeAtomic(s, target, entry, cfg); err != nil {
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	a.log().Debug("extracted entry", "name", entry.Name, "path", target)
	a.extracted(entry, cfg, counter)
	return target, nil
}

// writeAtomic writes content from s to target atomically using a temp file.
func (a *Archive) writeAtomic(s *EntryStream, target string, entry *Entry, cfg *extractConfig) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".rangezip-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	var onProgress func(uint64)
	if cfg.progress != nil {
		onProgress = func(n uint64) {
			cfg.progress(ProgressEvent{
				Stage:      StageExtracting,
				Name:       entry.Name,
				BytesDone:  n,
				BytesTotal: entry.UncompressedSize,
			})
		}
	}
	buf := make([]byte, extractBufferSize)
	if _, err := file.CopyWithContext(cfg.ctx, tmp, s, buf, onProgress); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := applyMetadata(tmpPath, entry, cfg); err != nil {
		return err
	}

	// Windows refuses to rename over an existing file.
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return &fs.PathError{Op: "extract", Path: target, Err: fs.ErrExist}
		}
		_ = os.Remove(target)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}

	success = true
	return nil
}

// applyMetadata applies mode and time metadata to the file at path.
func applyMetadata(path string, entry *Entry, cfg *extractConfig) error {
	if cfg.preserveMode {
		if err := os.Chmod(path, entry.Mode().Perm()); err != nil {
			return fmt.Errorf("setting mode: %w", err)
		}
	}
	if cfg.preserveTimes {
		mod := entry.ModTime()
		if err := os.Chtimes(path, mod, mod); err != nil {
			return fmt.Errorf("setting times: %w", err)
		}
	}
	return nil
}

func (a *Archive) extracted(entry *Entry, cfg *extractConfig, counter func() (int, int)) {
	if cfg.progress == nil {
		return
	}
	ev := ProgressEvent{
		Stage:      StageExtracted,
		Name:       entry.Name,
		BytesDone:  entry.UncompressedSize,
		BytesTotal: entry.UncompressedSize,
	}
	if counter != nil {
		ev.EntriesDone, ev.EntriesTotal = counter()
	}
	cfg.progress(ev)
}
