package ziptype

// EndRecord is the reconciled end of central directory record.
//
// When a ZIP64 end record is present its values replace the plain ones.
type EndRecord struct {
	DiskNumber      uint32
	DiskStart       uint32
	EntriesThisDisk uint64
	EntriesTotal    uint64
	DirectorySize   uint64
	DirectoryOffset uint64

	// Comment is the archive comment.
	Comment []byte

	// Location is the absolute offset of the plain end record.
	Location int64

	// Zip64 reports whether a ZIP64 end record overrode the plain values.
	Zip64 bool
}
