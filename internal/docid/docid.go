// Package docid derives the stable document identifier that names a
// document's output folder and record.
package docid

import (
	"path/filepath"
	"regexp"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9-]`)
	multiDash = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a filesystem-safe identifier.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	return s
}

// FromPath derives an identifier from the source filename stem.
func FromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if id := Slugify(stem); id != "" {
		return id
	}
	return "document"
}

// FromMetadata reads a string entry from the PDF Info dictionary, for
// corpora that carry a canonical identifier there (publisher article
// IDs and the like).
func FromMetadata(path, key string) (id string, ok bool) {
	// The pdf library panics on some malformed cross-reference tables;
	// a bad Info dictionary must not fail the document.
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	v := reader.Trailer().Key("Info").Key(key)
	if v.Kind() != pdflib.String {
		return "", false
	}
	s := strings.TrimSpace(v.Text())
	if s == "" {
		return "", false
	}
	return s, true
}

// Resolve returns the identifier for a source path: the configured
// metadata key when present and readable, the slugified filename stem
// otherwise.
func Resolve(path, metadataKey string) string {
	if metadataKey != "" {
		if raw, ok := FromMetadata(path, metadataKey); ok {
			if id := Slugify(raw); id != "" {
				return id
			}
		}
	}
	return FromPath(path)
}
