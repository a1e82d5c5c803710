package ziptype

// ProgressEvent represents a progress update during testing or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the entry currently being processed, if applicable.
	Name string

	// BytesDone is the number of uncompressed bytes completed for the entry.
	BytesDone uint64

	// BytesTotal is the declared uncompressed size of the entry.
	BytesTotal uint64

	// EntriesDone is the number of entries completed.
	EntriesDone int

	// EntriesTotal is the total number of entries in the operation.
	EntriesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for archive operations.
const (
	// StageTesting indicates entries are being decoded and checksummed.
	StageTesting ProgressStage = iota

	// StageExtracting indicates an entry is being written to disk.
	StageExtracting

	// StageExtracted indicates an entry has been committed to disk.
	StageExtracted
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageTesting:
		return "testing"
	case StageExtracting:
		return "extracting"
	case StageExtracted:
		return "extracted"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
