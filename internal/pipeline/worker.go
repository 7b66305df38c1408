package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docmill/docmill/internal/enrich"
	"github.com/docmill/docmill/internal/flatten"
	"github.com/docmill/docmill/internal/layout"
	"github.com/docmill/docmill/internal/merge"
)

// Extractor is the layout-inference capability: given a PDF it returns
// the hierarchical content tree and writes cropped images under outDir.
type Extractor interface {
	Extract(ctx context.Context, pdfPath, outDir string) (*layout.Tree, error)
}

// Enricher is the bibliographic metadata capability. Implementations
// return a degraded Result rather than an error when the service is
// unreachable.
type Enricher interface {
	Enrich(ctx context.Context, pdfPath string) enrich.Result
}

// WorkItem is one document's unit of processing. Identity is the
// source path; an item is consumed by exactly one worker.
type WorkItem struct {
	SourcePath string
	DocID      string
	Pages      int
}

// Outcome is the terminal state of one work item.
type Outcome struct {
	SourcePath string
	DocID      string

	// Stage is StageDone on success, otherwise the stage that failed.
	Stage Stage
	Err   error

	Enrichment enrich.Status
	Record     *merge.Record
	OutputPath string
}

// Failed reports whether the item ended in a failure state.
func (o Outcome) Failed() bool { return o.Err != nil }

// Worker drives single documents through the full stage sequence. A
// worker holds no per-document state; one instance may be shared by
// the serve-mode handler while pool workers each get their own.
type Worker struct {
	Extractor  Extractor
	Enricher   Enricher // nil disables enrichment (never attempted)
	OutputRoot string
	Flatten    flatten.Options
	Log        *slog.Logger
}

// Process runs one document start to finish. All failures are captured
// in the returned Outcome; nothing escapes to sibling documents.
func (w *Worker) Process(ctx context.Context, item WorkItem) Outcome {
	log := w.Log.With("doc_id", item.DocID, "source", item.SourcePath)
	out := Outcome{SourcePath: item.SourcePath, DocID: item.DocID, Enrichment: enrich.StatusNotAttempted}

	docDir := filepath.Join(w.OutputRoot, item.DocID)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		out.Stage = StageWriting
		out.Err = &WriteError{Path: docDir, Err: err}
		log.Error("cannot create document output dir", "error", err)
		return out
	}

	log.Debug("stage transition", "stage", StageExtracting)
	tree, err := w.Extractor.Extract(ctx, item.SourcePath, docDir)
	if err != nil {
		out.Stage = StageExtracting
		out.Err = &ExtractionError{Err: err}
		log.Error("extraction failed", "error", err)
		return out
	}

	log.Debug("stage transition", "stage", StageFlattening)
	flat, err := flatten.Flatten(tree, w.Flatten)
	if err != nil {
		out.Stage = StageFlattening
		out.Err = err
		// A schema error means the engine and the flattener disagree on
		// the tree shape; surface it loudly, it smells like version skew.
		log.Error("flattening failed: layout contract mismatch", "error", err)
		return out
	}

	meta := enrich.NotAttempted()
	if w.Enricher != nil {
		log.Debug("stage transition", "stage", StageEnriching)
		meta = w.Enricher.Enrich(ctx, item.SourcePath)
		if meta.Status != enrich.StatusPresent {
			log.Info("proceeding without enrichment", "status", meta.Status)
		}
	}
	out.Enrichment = meta.Status

	log.Debug("stage transition", "stage", StageMerging)
	rec := merge.Merge(item.DocID, flat, meta)
	out.Record = &rec

	log.Debug("stage transition", "stage", StageWriting)
	recPath := filepath.Join(docDir, item.DocID+".json")
	if err := writeRecord(recPath, &rec); err != nil {
		out.Stage = StageWriting
		out.Err = err
		log.Error("record write failed", "error", err)
		return out
	}

	out.Stage = StageDone
	out.OutputPath = recPath
	log.Info("document processed", "blocks", len(flat.Blocks), "enrichment", meta.Status)
	return out
}

func writeRecord(path string, rec *merge.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("marshal record: %w", err)}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
