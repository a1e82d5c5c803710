package rangezip

import "github.com/meigma/rangezip/internal/ziptype"

// Re-export progress types from internal/ziptype.
type (
	// ProgressEvent represents a progress update during testing or extraction.
	ProgressEvent = ziptype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = ziptype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = ziptype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageTesting indicates entries are being decoded and checksummed.
	StageTesting = ziptype.StageTesting

	// StageExtracting indicates an entry is being written to disk.
	StageExtracting = ziptype.StageExtracting

	// StageExtracted indicates an entry has been committed to disk.
	StageExtracted = ziptype.StageExtracted
)
