// Package flatten turns the hierarchical layout tree into a flat,
// ordered record of typed content blocks with stable global indices.
package flatten

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/docmill/docmill/internal/layout"
	"github.com/docmill/docmill/internal/textclean"
)

// DefaultCaptionProximity is the maximum weighted centroid distance, in
// layout units, within which a standalone caption is linked to the
// nearest preceding figure or table on the same page. No precise policy
// exists upstream, so it is a tunable with this documented default.
const DefaultCaptionProximity = 150.0

// Caption distance weighting: column-aware, horizontal displacement
// penalized more than vertical.
const (
	figureWeightX = 5.0
	tableWeightX  = 3.0
	weightY       = 1.0
)

// Options tune the flattening pass.
type Options struct {
	// CaptionProximity overrides DefaultCaptionProximity when > 0.
	CaptionProximity float64
}

func (o Options) proximity() float64 {
	if o.CaptionProximity > 0 {
		return o.CaptionProximity
	}
	return DefaultCaptionProximity
}

// SchemaError reports a structurally invalid layout tree. It signals a
// contract mismatch with the layout engine rather than a bad document.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "layout schema violation: " + e.Reason
}

// Block is one flattened content unit.
type Block struct {
	Index     int              `json:"index"`
	Page      int              `json:"page"`
	Kind      layout.BlockKind `json:"kind"`
	Text      string           `json:"text,omitempty"`
	ImagePath string           `json:"image_path,omitempty"`
	Caption   string           `json:"caption,omitempty"`
	BBox      layout.BBox      `json:"bbox"`
}

// Record is the flat, reading-ordered document schema. Block indices
// are contiguous from zero.
type Record struct {
	Blocks []Block `json:"blocks"`
}

// Flatten produces the flat record for a layout tree. It is pure and
// deterministic: the same tree always yields an identical record. The
// input tree is never mutated.
func Flatten(tree *layout.Tree, opts Options) (*Record, error) {
	if tree == nil {
		return nil, &SchemaError{Reason: "nil tree"}
	}
	if err := validate(tree); err != nil {
		return nil, err
	}

	pages := snapshotPages(tree)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	var blocks []Block
	for _, page := range pages {
		blocks = append(blocks, flattenPage(page, opts.proximity())...)
	}

	for i := range blocks {
		blocks[i].Index = i
	}
	return &Record{Blocks: blocks}, nil
}

func validate(tree *layout.Tree) error {
	for _, page := range tree.Pages {
		if page.Index < 0 {
			return &SchemaError{Reason: fmt.Sprintf("negative page index %d", page.Index)}
		}
		for _, b := range page.Blocks {
			if !b.Kind.Known() {
				return &SchemaError{Reason: fmt.Sprintf("unknown block kind %q on page %d", b.Kind, page.Index)}
			}
			if (b.Kind == layout.KindFigure || b.Kind == layout.KindTable) && b.ImagePath == "" {
				return &SchemaError{Reason: fmt.Sprintf("%s block without image reference on page %d", b.Kind, page.Index)}
			}
		}
	}
	return nil
}

// snapshotPages copies the tree's pages and blocks so sorting and
// caption absorption never alias shared state.
func snapshotPages(tree *layout.Tree) []layout.Page {
	pages := make([]layout.Page, len(tree.Pages))
	for i, p := range tree.Pages {
		pages[i] = layout.Page{Index: p.Index, Blocks: append([]layout.Block(nil), p.Blocks...)}
	}
	return pages
}

// flattenPage orders one page's blocks by reading order, cleans text,
// drops boilerplate and links standalone captions to their targets.
func flattenPage(page layout.Page, proximity float64) []Block {
	src := page.Blocks
	order := make([]int, len(src))
	for i := range order {
		order[i] = i
	}
	// Reading order: vertical position primary, horizontal tie-break.
	sort.SliceStable(order, func(a, b int) bool {
		ba, bb := src[order[a]].BBox, src[order[b]].BBox
		if ba[1] != bb[1] {
			return ba[1] < bb[1]
		}
		return ba[0] < bb[0]
	})

	var out []Block
	for _, i := range order {
		b := src[i]
		switch b.Kind {
		case layout.KindParagraph, layout.KindHeading:
			txt := textclean.Paragraph(b.Text)
			if txt == "" || textclean.IsBoilerplate(txt) {
				continue
			}
			out = append(out, Block{Page: page.Index, Kind: b.Kind, Text: txt, BBox: b.BBox})
		case layout.KindFormula:
			txt := strings.TrimSpace(b.Text)
			if txt == "" {
				continue
			}
			out = append(out, Block{Page: page.Index, Kind: b.Kind, Text: txt, BBox: b.BBox})
		case layout.KindFigure, layout.KindTable:
			out = append(out, Block{
				Page:      page.Index,
				Kind:      b.Kind,
				Text:      strings.TrimSpace(b.Text),
				ImagePath: b.ImagePath,
				Caption:   textclean.Paragraph(b.Caption),
				BBox:      b.BBox,
			})
		case layout.KindCaption:
			txt := textclean.Paragraph(b.Text)
			if txt == "" || textclean.IsBoilerplate(txt) {
				continue
			}
			if target := nearestTarget(out, b.BBox, proximity); target >= 0 {
				if out[target].Caption == "" {
					out[target].Caption = txt
				} else {
					out[target].Caption += " " + txt
				}
				continue
			}
			out = append(out, Block{Page: page.Index, Kind: b.Kind, Text: txt, BBox: b.BBox})
		}
	}
	return out
}

// nearestTarget finds the closest preceding figure/table on the page
// within the proximity threshold, or -1.
func nearestTarget(placed []Block, caption layout.BBox, proximity float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, b := range placed {
		var wx float64
		switch b.Kind {
		case layout.KindFigure:
			wx = figureWeightX
		case layout.KindTable:
			wx = tableWeightX
		default:
			continue
		}
		d := weightedDistance(caption, b.BBox, wx, weightY)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best >= 0 && bestDist <= proximity {
		return best
	}
	return -1
}

func weightedDistance(a, b layout.BBox, wx, wy float64) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	dx, dy := ax-bx, ay-by
	return math.Sqrt(wx*dx*dx + wy*dy*dy)
}
