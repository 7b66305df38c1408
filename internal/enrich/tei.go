package enrich

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// TEI responses are XML, but the service occasionally emits entities
// and minor malformations that a strict XML decoder rejects. Parsing
// with the lenient HTML tokenizer keeps the adapter tolerant; element
// names arrive lowercased.

func parseTEI(teiXML string, rootTag string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(teiXML))
	if err != nil {
		return nil, fmt.Errorf("parse tei: %w", err)
	}
	root := findFirst(doc, rootTag)
	if root == nil {
		return nil, fmt.Errorf("malformed tei response: no <%s> element", rootTag)
	}
	return root, nil
}

// ParseHeader extracts bibliographic front matter from a header TEI
// document.
func ParseHeader(teiXML string) (*Header, error) {
	root, err := parseTEI(teiXML, "teiheader")
	if err != nil {
		return nil, err
	}

	h := &Header{}

	if ts := findFirst(root, "titlestmt"); ts != nil {
		if t := findFirstWhere(ts, "title", withAttr("type", "main")); t != nil {
			h.Title = textOf(t)
		} else if t := findFirst(ts, "title"); t != nil {
			h.Title = textOf(t)
		}
	}

	for _, idno := range findAll(root, "idno") {
		if attrIs(idno, "type", "doi") {
			h.DOI = textOf(idno)
			break
		}
	}

	if d := findFirst(root, "date"); d != nil {
		h.PublicationDate = firstNonEmpty(attr(d, "when"), textOf(d))
		if len(h.PublicationDate) >= 4 {
			h.PublicationYear = h.PublicationDate[:4]
		}
	}
	if p := findFirst(root, "publisher"); p != nil {
		h.Publisher = textOf(p)
	}

	if analytic := findFirst(root, "analytic"); analytic != nil {
		h.Authors = personNames(analytic)
	}

	if monogr := findFirst(root, "monogr"); monogr != nil {
		if t := findFirstWhere(monogr, "title", withAnyAttr("level", "j", "m")); t != nil {
			h.Venue = textOf(t)
		}
		if m := findFirst(monogr, "meeting"); m != nil {
			if loc := findFirstAny(m, "addrline", "settlement"); loc != nil {
				h.ConferenceLocation = textOf(loc)
			}
		}
		for _, bs := range findAll(monogr, "biblscope") {
			switch strings.ToLower(attr(bs, "unit")) {
			case "volume":
				h.Volume = textOf(bs)
			case "page":
				h.StartPage = attr(bs, "from")
				h.EndPage = attr(bs, "to")
			}
		}
	}

	if a := findFirst(root, "abstract"); a != nil {
		h.Abstract = strings.TrimSpace(textOf(a))
	}

	return h, nil
}

// ParseReferences extracts the ordered bibliography from a references
// TEI document.
func ParseReferences(teiXML string) ([]Reference, error) {
	root, err := parseTEI(teiXML, "listbibl")
	if err != nil {
		return nil, err
	}

	refs := []Reference{}
	for i, bib := range findAll(root, "biblstruct") {
		ref := Reference{ID: fmt.Sprintf("ref%d", i+1)}

		if analytic := findFirst(bib, "analytic"); analytic != nil {
			if t := findFirst(analytic, "title"); t != nil {
				ref.Title = textOf(t)
			}
			ref.Authors = personNames(analytic)
		}
		if monogr := findFirst(bib, "monogr"); monogr != nil {
			if t := findFirst(monogr, "title"); t != nil {
				ref.Source = textOf(t)
			}
		}
		for _, bs := range findAll(bib, "biblscope") {
			switch strings.ToLower(attr(bs, "unit")) {
			case "volume":
				ref.Volume = textOf(bs)
			case "issue":
				ref.Issue = textOf(bs)
			case "page":
				from, to := attr(bs, "from"), attr(bs, "to")
				if from != "" && to != "" {
					ref.Pages = from + "-" + to
				} else {
					ref.Pages = textOf(bs)
				}
			}
		}
		if d := findFirst(bib, "date"); d != nil {
			year := firstNonEmpty(attr(d, "when"), textOf(d))
			if len(year) >= 4 {
				ref.Year = year[:4]
			}
		}
		if n := findFirstWhere(bib, "note", withAttr("type", "raw_reference")); n != nil {
			ref.RawText = textOf(n)
		}

		refs = append(refs, ref)
	}
	return refs, nil
}

// personNames collects "forename surname" strings from the author
// elements directly under n.
func personNames(n *html.Node) []string {
	var names []string
	for _, a := range findAll(n, "author") {
		pn := findFirst(a, "persname")
		if pn == nil {
			continue
		}
		var parts []string
		for _, f := range findAll(pn, "forename") {
			if t := textOf(f); t != "" {
				parts = append(parts, t)
			}
		}
		if s := findFirst(pn, "surname"); s != nil {
			if t := textOf(s); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			names = append(names, strings.Join(parts, " "))
		}
	}
	return names
}

// ---- node walking helpers ----

func findFirst(n *html.Node, tag string) *html.Node {
	return findFirstWhere(n, tag, func(*html.Node) bool { return true })
}

func findFirstAny(n *html.Node, tags ...string) *html.Node {
	for _, tag := range tags {
		if m := findFirst(n, tag); m != nil {
			return m
		}
	}
	return nil
}

func findFirstWhere(n *html.Node, tag string, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findFirstWhere(c, tag, pred); m != nil {
			return m
		}
	}
	return nil
}

// findAll returns matching descendants of n without descending into a
// match: nested same-name elements belong to their parent match.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			return
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func withAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attrIs(n, key, val) }
}

func withAnyAttr(key string, vals ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, v := range vals {
			if attrIs(n, key, v) {
				return true
			}
		}
		return false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func attrIs(n *html.Node, key, val string) bool {
	return strings.EqualFold(attr(n, key), val)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
