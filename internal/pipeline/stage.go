// Package pipeline owns the per-document processing sequence and the
// orchestration of a batch run across a bounded worker pool.
package pipeline

import "fmt"

// Stage identifies a step of the per-document state machine. Items
// move strictly Queued → Extracting → Flattening → Enriching → Merging
// → Writing → Done; any failure stops the item at its current stage.
// Enriching is the exception: it never fails an item, it degrades.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageExtracting Stage = "extracting"
	StageFlattening Stage = "flattening"
	StageEnriching  Stage = "enriching"
	StageMerging    Stage = "merging"
	StageWriting    Stage = "writing"
	StageDone       Stage = "done"
)

// ExtractionError wraps a per-document layout engine failure. It never
// propagates beyond its document.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "extraction failed: " + e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// WriteError wraps a per-document output persistence failure.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s", e.Path, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }
