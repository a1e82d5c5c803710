// Package index provides name lookups over parsed central directory entries.
package index

import (
	"cmp"
	"iter"
	"slices"
	"sort"
	"strings"

	"github.com/meigma/rangezip/internal/ziptype"
)

// Index maps entry names to entries.
//
// Entries are kept sorted by name, enabling O(log n) lookups and efficient
// prefix scans for directory operations. When the directory records the same
// name more than once, the last record wins.
type Index struct {
	sorted []*ziptype.Entry
}

// New builds an index over entries in central directory order.
func New(entries []*ziptype.Entry) *Index {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b *ziptype.Entry) int {
		return cmp.Compare(a.Name, b.Name)
	})

	// Keep the last of each run of equal names; the stable sort preserves
	// directory order within a run.
	out := sorted[:0]
	for i, e := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Name == e.Name {
			continue
		}
		out = append(out, e)
	}
	clear(sorted[len(out):])
	return &Index{sorted: out}
}

// Lookup returns the entry recorded under name.
func (idx *Index) Lookup(name string) (*ziptype.Entry, bool) {
	i, ok := slices.BinarySearchFunc(idx.sorted, name, func(e *ziptype.Entry, name string) int {
		return cmp.Compare(e.Name, name)
	})
	if !ok {
		return nil, false
	}
	return idx.sorted[i], true
}

// Len returns the number of distinct names.
func (idx *Index) Len() int {
	return len(idx.sorted)
}

// Entries returns an iterator over all entries in name order.
func (idx *Index) Entries() iter.Seq[*ziptype.Entry] {
	return slices.Values(idx.sorted)
}

// EntriesWithPrefix returns an iterator over entries whose names start with
// prefix, in name order.
func (idx *Index) EntriesWithPrefix(prefix string) iter.Seq[*ziptype.Entry] {
	return func(yield func(*ziptype.Entry) bool) {
		start := sort.Search(len(idx.sorted), func(i int) bool {
			return idx.sorted[i].Name >= prefix
		})
		for _, e := range idx.sorted[start:] {
			if !strings.HasPrefix(e.Name, prefix) {
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// HasPrefix reports whether any entry name starts with prefix.
func (idx *Index) HasPrefix(prefix string) bool {
	for range idx.EntriesWithPrefix(prefix) {
		return true
	}
	return false
}
