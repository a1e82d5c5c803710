// Package ziptype defines the archive data model shared by the rangezip
// package and its internal packages. This avoids circular imports between
// rangezip and internal/format, internal/file.
package ziptype
