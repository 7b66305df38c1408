package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// contentEntry is one element of the extractor's content-list JSON.
// The extractor emits a single ordered array covering the whole
// document; page membership is carried on each entry.
type contentEntry struct {
	Type         string    `json:"type"`
	Text         string    `json:"text"`
	TextLevel    int       `json:"text_level"`
	ImgPath      string    `json:"img_path"`
	ImgCaption   []string  `json:"img_caption"`
	TableCaption []string  `json:"table_caption"`
	TableBody    string    `json:"table_body"`
	PageIdx      int       `json:"page_idx"`
	BBox         []float64 `json:"bbox"`
}

// DecodeContentList converts an extractor content-list JSON document
// into a Tree. Relative image paths are resolved against baseDir so
// the tree references the exact files the extractor wrote.
func DecodeContentList(r io.Reader, baseDir string) (*Tree, error) {
	var entries []contentEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode content list: %w", err)
	}

	byPage := make(map[int][]Block)
	for i, e := range entries {
		b, ok, err := entryToBlock(e, baseDir)
		if err != nil {
			return nil, fmt.Errorf("content list entry %d: %w", i, err)
		}
		if !ok {
			continue
		}
		byPage[e.PageIdx] = append(byPage[e.PageIdx], b)
	}

	pages := make([]int, 0, len(byPage))
	for idx := range byPage {
		pages = append(pages, idx)
	}
	sort.Ints(pages)

	tree := &Tree{Pages: make([]Page, 0, len(pages))}
	for _, idx := range pages {
		tree.Pages = append(tree.Pages, Page{Index: idx, Blocks: byPage[idx]})
	}
	return tree, nil
}

func entryToBlock(e contentEntry, baseDir string) (Block, bool, error) {
	var b Block
	b.BBox = toBBox(e.BBox)

	switch e.Type {
	case "text":
		b.Text = e.Text
		if e.TextLevel >= 1 {
			b.Kind = KindHeading
			b.HeadingLevel = e.TextLevel
		} else {
			b.Kind = KindParagraph
		}
	case "equation":
		b.Kind = KindFormula
		b.Text = e.Text
	case "image":
		if e.ImgPath == "" {
			return b, false, fmt.Errorf("image entry without img_path on page %d", e.PageIdx)
		}
		b.Kind = KindFigure
		b.ImagePath = resolveImage(e.ImgPath, baseDir)
		b.Caption = strings.TrimSpace(strings.Join(e.ImgCaption, " "))
	case "table":
		if e.ImgPath == "" {
			return b, false, fmt.Errorf("table entry without img_path on page %d", e.PageIdx)
		}
		b.Kind = KindTable
		b.ImagePath = resolveImage(e.ImgPath, baseDir)
		b.Caption = strings.TrimSpace(strings.Join(e.TableCaption, " "))
		b.Text = e.TableBody
	case "image_caption", "table_caption":
		b.Kind = KindCaption
		b.Text = e.Text
	default:
		// Forward-compat: unknown entry kinds are skipped rather than
		// failing the document. The flattener validates what remains.
		return b, false, nil
	}

	if b.Kind != KindFigure && b.Kind != KindTable && strings.TrimSpace(b.Text) == "" {
		return b, false, nil
	}
	return b, true, nil
}

func resolveImage(p, baseDir string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func toBBox(v []float64) BBox {
	var b BBox
	copy(b[:], v)
	return b
}
