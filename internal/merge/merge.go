// Package merge reconciles the flattened layout schema with enrichment
// metadata into the final per-document record.
package merge

import (
	"github.com/docmill/docmill/internal/enrich"
	"github.com/docmill/docmill/internal/flatten"
)

// Provenance records which capabilities contributed to a record. The
// enrichment status distinguishes "not attempted" and "unavailable"
// from an attempted-but-empty result.
type Provenance struct {
	ExtractorUsed    bool          `json:"extractor_used"`
	EnrichmentUsed   bool          `json:"enrichment_used"`
	EnrichmentStatus enrich.Status `json:"enrichment_status"`
}

// Record is the merged per-document output. Header and References are
// omitted from the JSON encoding entirely unless enrichment delivered
// a response; an answered-but-empty response keeps them present and
// empty.
type Record struct {
	DocumentID  string             `json:"document_id"`
	FlatContent *flatten.Record    `json:"flat_content"`
	Header      *enrich.Header     `json:"header,omitzero"`
	References  []enrich.Reference `json:"references,omitzero"`
	Provenance  Provenance         `json:"provenance"`
}

// Merge attaches enrichment metadata alongside the flattened content.
// It is pure and idempotent: identical inputs always yield an identical
// record, and flat is never mutated. In-text citation marker blocks in
// flat are left untouched; the externally parsed reference list is a
// separate field and no citation-to-reference linking is attempted.
func Merge(docID string, flat *flatten.Record, meta enrich.Result) Record {
	rec := Record{
		DocumentID:  docID,
		FlatContent: flat,
		Provenance: Provenance{
			ExtractorUsed:    true,
			EnrichmentUsed:   meta.Status == enrich.StatusPresent,
			EnrichmentStatus: meta.Status,
		},
	}
	if meta.Status != enrich.StatusPresent {
		return rec
	}

	if meta.Header != nil {
		rec.Header = meta.Header
	} else {
		rec.Header = &enrich.Header{}
	}
	if meta.References != nil {
		rec.References = meta.References
	} else {
		rec.References = []enrich.Reference{}
	}
	return rec
}
