package rangezip

import (
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"

	"github.com/meigma/rangezip/internal/file"
	"github.com/meigma/rangezip/internal/index"
	"github.com/meigma/rangezip/internal/pathutil"
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// Open implements fs.FS.
//
// Open returns the entry stream for a file, or a directory handle for an
// explicit directory entry or any path that is a prefix of other entries.
// Encrypted entries are opened with the default password. Entries whose
// names are not valid fs paths (absolute, containing "..") cannot be
// reached through the fs.FS view; use Find and OpenEntry instead.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := a.idx.Lookup(name); ok && !e.IsDir() {
		s, err := a.OpenEntry(e)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return s, nil
	}

	if a.isDir(name) {
		return &openDir{a: a, name: name}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
//
// Stat returns file info for the named file without reading its content.
// Directories recorded in the archive report their own metadata; implied
// directories report synthetic info.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := a.idx.Lookup(name); ok && !e.IsDir() {
		info, err := file.NewInfo(e, pathutil.Base(name))
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
		return info, nil
	}
	if name != "." {
		if e, ok := a.idx.Lookup(name + "/"); ok {
			info, err := file.NewInfo(e, pathutil.Base(name))
			if err != nil {
				return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
			}
			return info, nil
		}
	}

	if a.isDir(name) {
		return file.NewDirInfo(pathutil.Base(name)), nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile reads and returns the entire contents of the named file,
// verified against its CRC-32.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}

	e, ok := a.idx.Lookup(name)
	if !ok || e.IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}

	data, err := a.ReadEntry(e)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir returns directory entries for the named directory, sorted by name.
// Directories that the archive only implies through nested paths are
// synthesized.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if !a.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	di := newDirIter(a.idx, pathutil.DirPrefix(name))
	defer di.Close()

	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := di.Next()
		if !ok {
			break
		}
		entries = append(entries, entry)
	}
	// Index order sorts full names, so "a-b" precedes the children of "a/".
	slices.SortFunc(entries, func(x, y fs.DirEntry) int {
		return strings.Compare(x.Name(), y.Name())
	})
	return entries, nil
}

// isDir checks if name is a directory: the root, an explicit directory
// entry, or a prefix of other entries.
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return true
	}
	prefix := name + "/"
	if _, ok := a.idx.Lookup(prefix); ok {
		return true
	}
	return a.idx.HasPrefix(prefix)
}

// openDir implements fs.File and fs.ReadDirFile for directories.
type openDir struct {
	a    *Archive
	name string
	iter *dirIter
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return d.a.Stat(d.name)
}

func (d *openDir) Close() error {
	if d.iter != nil {
		d.iter.Close()
		d.iter = nil
	}
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.iter == nil {
		d.iter = newDirIter(d.a.idx, pathutil.DirPrefix(d.name))
	}

	if n <= 0 {
		return d.readAll()
	}

	entries := make([]fs.DirEntry, 0, n)
	for len(entries) < n {
		entry, ok := d.iter.Next()
		if !ok {
			if len(entries) == 0 {
				return nil, io.EOF
			}
			return entries, nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *openDir) readAll() ([]fs.DirEntry, error) {
	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := d.iter.Next()
		if !ok {
			return entries, nil
		}
		entries = append(entries, entry)
	}
}

// dirIter iterates over directory entries, synthesizing subdirectories.
// It deduplicates children that share a directory component and skips names
// that cannot appear in an fs.FS.
type dirIter struct {
	next   func() (*Entry, bool)
	stop   func()
	prefix string
	seen   map[string]struct{}
	done   bool
}

// newDirIter creates a directory iterator for entries under prefix.
func newDirIter(idx *index.Index, prefix string) *dirIter {
	next, stop := iter.Pull(idx.EntriesWithPrefix(prefix))
	return &dirIter{
		next:   next,
		stop:   stop,
		prefix: prefix,
		seen:   make(map[string]struct{}),
	}
}

// Next returns the next directory entry. Explicit directory entries supply
// their own metadata; directories implied by nested paths are synthesized.
func (it *dirIter) Next() (fs.DirEntry, bool) {
	if it.done {
		return nil, false
	}
	for {
		e, ok := it.next()
		if !ok {
			it.Close()
			return nil, false
		}

		childName, isSubDir := pathutil.Child(e.Name, it.prefix)
		if childName == "" || childName == "." || childName == ".." {
			continue
		}
		if _, dup := it.seen[childName]; dup {
			continue
		}
		it.seen[childName] = struct{}{}

		explicitDir := e.Name == it.prefix+childName+"/"
		if isSubDir && !explicitDir {
			return file.NewDirEntry(file.NewDirInfo(childName), nil), true
		}
		info, err := file.NewInfo(e, childName)
		if err != nil {
			return file.NewDirEntry(file.NewDirInfo(childName), err), true
		}
		return file.NewDirEntry(info, nil), true
	}
}

// Close releases resources held by the iterator.
func (it *dirIter) Close() {
	if it.done {
		return
	}
	it.done = true
	if it.stop != nil {
		it.stop()
		it.stop = nil
	}
}
