// Package discover resolves an input specification into the ordered
// set of PDF work targets for a run.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoInput means the input specification resolved to zero PDF files.
// It is fatal to the run.
var ErrNoInput = errors.New("no pdf files discovered")

// Item is one discovered PDF. Pages is 0 when probing was disabled or
// the file could not be inspected.
type Item struct {
	SourcePath string
	Pages      int
}

// Options control traversal and probing.
type Options struct {
	// Recursive descends into subdirectories of directory inputs.
	Recursive bool
	// Probe inspects each PDF for its page count; unreadable files are
	// logged and still dispatched, the extractor owns the verdict.
	Probe bool
}

// Discover expands inputs (directories and/or explicit files) into a
// deduplicated, lexicographically ordered list of PDFs. Traversal is
// read-only.
func Discover(inputs []string, opts Options, log *slog.Logger) ([]Item, error) {
	seen := make(map[string]bool)
	var paths []string

	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			paths = append(paths, abs)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			if isPDF(in) {
				add(in)
			} else {
				log.Warn("skipping non-pdf input", "path", in)
			}
			continue
		}
		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !opts.Recursive && p != in {
					return filepath.SkipDir
				}
				return nil
			}
			if isPDF(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", in, err)
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	sort.Strings(paths)

	items := make([]Item, len(paths))
	for i, p := range paths {
		items[i] = Item{SourcePath: p}
		if opts.Probe {
			n, err := pdfapi.PageCountFile(p)
			if err != nil {
				log.Warn("pdf probe failed", "path", p, "error", err)
				continue
			}
			items[i].Pages = n
		}
	}
	log.Info("discovery complete", "pdfs", len(items))
	return items, nil
}

func isPDF(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".pdf")
}
