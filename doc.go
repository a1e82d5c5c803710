// Package rangezip reads ZIP archives through a random-access byte source.
//
// The source only needs to answer "give me bytes [a, b)", which makes the
// package suitable for archives that live behind HTTP range requests, in
// object storage, or in a memory-mapped file. Opening an archive fetches the
// end of the source once; when the central directory is near the end, that
// single request is all Open needs.
//
// # Quick Start
//
//	src, err := http.NewSource("https://example.com/archive.zip")
//	if err != nil {
//	    return err
//	}
//	archive, err := rangezip.Open(src)
//	if err != nil {
//	    return err
//	}
//	content, err := archive.ReadFile("docs/README.md")
//
// Entries are streamed with [Archive.OpenEntry]. The stream verifies the
// CRC-32 when it reaches the end of the content. Reads that stop early are
// not verified unless the archive was opened with [WithVerifyOnClose].
//
// # Supported features
//
// Stored, deflated and zstd (method 93) entries, ZIP64 sizes and offsets,
// traditional PKWARE encryption, archives with leading data such as
// self-extracting stubs, and CP437 or UTF-8 names. Multi-disk archives and
// AES encryption are rejected.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS and fs.ReadDirFS.
package rangezip
