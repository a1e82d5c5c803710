package file

import (
	"io/fs"
	"time"

	"github.com/meigma/rangezip/internal/sizing"
	"github.com/meigma/rangezip/internal/ziptype"
)

// Info implements fs.FileInfo for archive entries.
type Info struct {
	entry ziptype.Entry
	name  string
	size  int64
}

// NewInfo creates an Info from an entry.
func NewInfo(entry *ziptype.Entry, name string) (*Info, error) {
	size, err := sizing.Int64(entry.UncompressedSize)
	if err != nil {
		return nil, err
	}
	return &Info{entry: *entry, name: name, size: size}, nil
}

func (fi *Info) Name() string       { return fi.name }
func (fi *Info) Size() int64        { return fi.size }
func (fi *Info) Mode() fs.FileMode  { return fi.entry.Mode() }
func (fi *Info) ModTime() time.Time { return fi.entry.ModTime() }
func (fi *Info) IsDir() bool        { return fi.entry.IsDir() }

// Sys returns the underlying *ziptype.Entry.
func (fi *Info) Sys() any { return &fi.entry }

// DirInfo implements fs.FileInfo for synthetic directories.
type DirInfo struct {
	name string
}

// NewDirInfo creates a DirInfo with the given name.
func NewDirInfo(name string) *DirInfo {
	return &DirInfo{name: name}
}

func (di *DirInfo) Name() string       { return di.name }
func (di *DirInfo) Size() int64        { return 0 }
func (di *DirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (di *DirInfo) ModTime() time.Time { return time.Time{} }
func (di *DirInfo) IsDir() bool        { return true }
func (di *DirInfo) Sys() any           { return nil }

// DirEntry implements fs.DirEntry by wrapping fs.FileInfo.
type DirEntry struct {
	info    fs.FileInfo
	infoErr error
}

// NewDirEntry creates a DirEntry wrapping the given FileInfo.
func NewDirEntry(info fs.FileInfo, err error) *DirEntry {
	return &DirEntry{info: info, infoErr: err}
}

func (de *DirEntry) Name() string               { return de.info.Name() }
func (de *DirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *DirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *DirEntry) Info() (fs.FileInfo, error) { return de.info, de.infoErr }
