// Package layout models the hierarchical content tree produced by the
// external layout-inference engine and adapts its on-disk output into
// Go types the rest of the pipeline consumes.
package layout

// BlockKind classifies a content block within a page.
type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindHeading   BlockKind = "heading"
	KindFigure    BlockKind = "figure"
	KindTable     BlockKind = "table"
	KindFormula   BlockKind = "formula"
	KindCaption   BlockKind = "caption"
)

// Known reports whether k is one of the block kinds the pipeline handles.
func (k BlockKind) Known() bool {
	switch k {
	case KindParagraph, KindHeading, KindFigure, KindTable, KindFormula, KindCaption:
		return true
	}
	return false
}

// BBox is a layout bounding region: x0, y0, x1, y1 in page coordinates,
// origin top-left.
type BBox [4]float64

// Center returns the centroid of the box.
func (b BBox) Center() (x, y float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Block is one typed content unit on a page.
type Block struct {
	Kind BlockKind
	BBox BBox

	// Text carries the block payload for paragraph, heading, formula
	// and caption kinds. Formula text is raw LaTeX.
	Text string

	// HeadingLevel is set for heading blocks (1 = top level).
	HeadingLevel int

	// ImagePath references the cropped raster artifact for figure and
	// table blocks. The path is exactly where the extractor wrote it.
	ImagePath string

	// Caption holds caption text the extractor already attached to a
	// figure or table block.
	Caption string
}

// Page holds the ordered blocks of one page.
type Page struct {
	Index  int
	Blocks []Block
}

// Tree is the full hierarchical layout of one document.
type Tree struct {
	Pages []Page
}
