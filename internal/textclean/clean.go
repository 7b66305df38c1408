// Package textclean normalizes text blocks coming out of the layout
// engine: publisher boilerplate filtering, inline math whitespace
// cleanup and markdown stripping.
package textclean

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Boilerplate fragments the layout engine tends to pick up from page
// margins and footers of published papers.
var boilerplatePhrases = []string{
	"Manuscript received",
	"ieee copyright",
	"digital object identifier",
	"This material is based on research sponsored",
	"the associate editor",
	"Authorized licensed use",
}

var (
	phrasePattern    = regexp.MustCompile("(?i)" + strings.Join(escapeAll(boilerplatePhrases), "|"))
	isbnPattern      = regexp.MustCompile(`ISBN\s+\d{1,5}-\d{1,7}-\d{1,7}-\d{1,7}-\d`)
	copyrightPattern = regexp.MustCompile(`(?i)©\s*\d{4}\s*IEEE`)
	yearIEEEPattern  = regexp.MustCompile(`(?i)\b\d{4}\b\s*IEEE`)

	mathSpan = regexp.MustCompile(`\$([^$]+)\$`)
	multiWS  = regexp.MustCompile(`\s+`)
)

func escapeAll(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = regexp.QuoteMeta(p)
	}
	return out
}

// IsBoilerplate reports whether a text block is publisher boilerplate
// rather than document content.
func IsBoilerplate(s string) bool {
	return phrasePattern.MatchString(s) ||
		isbnPattern.MatchString(s) ||
		copyrightPattern.MatchString(s) ||
		yearIEEEPattern.MatchString(s)
}

// NormalizeMath tightens whitespace inside $...$ spans, which OCR tends
// to scatter through LaTeX commands and braces.
func NormalizeMath(s string) string {
	return mathSpan.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[1 : len(m)-1]
		inner = regexp.MustCompile(`\{\s+`).ReplaceAllString(inner, "{")
		inner = regexp.MustCompile(`\s+\}`).ReplaceAllString(inner, "}")
		inner = regexp.MustCompile(`\\\s+`).ReplaceAllString(inner, `\`)
		inner = multiWS.ReplaceAllString(inner, " ")
		return "$" + strings.TrimSpace(inner) + "$"
	})
}

// StripMarkup removes inline markdown (emphasis, code spans, links)
// from a text block by walking the goldmark AST and keeping only the
// text content. Falls back to the input if nothing survives.
func StripMarkup(s string) string {
	src := []byte(s)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte(' ')
				}
				continue
			}
			walk(c)
		}
	}
	walk(doc)

	out := strings.TrimSpace(buf.String())
	if out == "" {
		return strings.TrimSpace(s)
	}
	return out
}

// Paragraph applies the full cleanup chain for paragraph and caption
// text: newline removal, whitespace collapsing, math normalization and
// markdown stripping. The markdown pass only runs when marker
// characters are present, so ordinal prefixes like "1. Introduction"
// are never reinterpreted as list syntax.
func Paragraph(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(multiWS.ReplaceAllString(s, " "))
	s = NormalizeMath(s)
	if strings.ContainsAny(s, "*_`[") {
		s = StripMarkup(s)
	}
	return s
}
