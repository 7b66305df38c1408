package layout

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandExtractor drives the external layout-inference engine as a
// subprocess. The engine receives the PDF path and an output directory,
// writes cropped images under it and produces a
// <stem>_content_list.json describing the document layout.
type CommandExtractor struct {
	// Binary is the engine executable, resolved via PATH if bare.
	Binary string

	// Lang is an OCR language hint forwarded opaquely to the engine.
	Lang string

	Log *slog.Logger
}

// Extract runs the engine for one PDF and decodes its content list.
// The engine call is blocking and may take minutes per document; the
// caller bounds concurrency.
func (e *CommandExtractor) Extract(ctx context.Context, pdfPath, outDir string) (*Tree, error) {
	args := []string{"-p", pdfPath, "-o", outDir}
	if e.Lang != "" {
		args = append(args, "--lang", e.Lang)
	}

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if e.Log != nil {
		e.Log.Debug("invoking layout engine", "binary", e.Binary, "pdf", pdfPath)
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("layout engine: %w: %s", err, tail(stderr.String(), 500))
	}

	listPath := e.contentListPath(pdfPath, outDir)
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("layout engine produced no content list: %w", err)
	}
	defer f.Close()

	tree, err := DecodeContentList(f, outDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(listPath), err)
	}
	return tree, nil
}

func (e *CommandExtractor) contentListPath(pdfPath, outDir string) string {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(outDir, stem+"_content_list.json")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
