package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/docmill/docmill/internal/enrich"
)

// Failure is one failed work item in the run report.
type Failure struct {
	SourcePath string `json:"source_path"`
	Stage      Stage  `json:"stage"`
	Message    string `json:"message"`
}

// Summary aggregates a batch's outcomes. It is owned exclusively by
// the run collector; callers read it only after Run returns.
type Summary struct {
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failed"`

	// NoEnrichment lists documents that succeeded without metadata.
	NoEnrichment []string `json:"no_enrichment"`

	Elapsed time.Duration `json:"-"`
}

// AnyFailed reports whether at least one document failed.
func (s *Summary) AnyFailed() bool { return len(s.Failed) > 0 }

func (s *Summary) record(o Outcome) {
	s.Processed++
	if o.Failed() {
		s.Failed = append(s.Failed, Failure{
			SourcePath: o.SourcePath,
			Stage:      o.Stage,
			Message:    o.Err.Error(),
		})
		return
	}
	s.Succeeded++
	if o.Enrichment != enrich.StatusPresent {
		s.NoEnrichment = append(s.NoEnrichment, o.SourcePath)
	}
}

// finalize orders the lists so reports are deterministic regardless of
// worker scheduling.
func (s *Summary) finalize() {
	sort.Slice(s.Failed, func(i, j int) bool { return s.Failed[i].SourcePath < s.Failed[j].SourcePath })
	sort.Strings(s.NoEnrichment)
}

// WriteReports persists the run-level error report next to the
// per-document outputs: failures.json for failed items and
// no_enrichment.json for documents that went through without metadata.
func (s *Summary) WriteReports(outputRoot string) error {
	if err := writeJSON(filepath.Join(outputRoot, "failures.json"), s.Failed); err != nil {
		return err
	}
	return writeJSON(filepath.Join(outputRoot, "no_enrichment.json"), s.NoEnrichment)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
