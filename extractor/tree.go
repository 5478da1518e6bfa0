package extractor

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field identifies one string-valued property of a post container.
type Field int

const (
	// FieldPermalink is the href of the first status link.
	FieldPermalink Field = iota
	// FieldText is the rendered inner text of the post body.
	FieldText
	// FieldTextHTML is the inner markup of the post body.
	FieldTextHTML
	// FieldTimestamp is the machine-readable datetime of the time element.
	FieldTimestamp
)

func (f Field) String() string {
	switch f {
	case FieldPermalink:
		return "permalink"
	case FieldText:
		return "text"
	case FieldTextHTML:
		return "text_html"
	case FieldTimestamp:
		return "timestamp"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Outcome is the result of extracting one field: either a value was found
// or the field is absent. A found value may still be the empty string.
type Outcome struct {
	Value string
	Found bool
}

// Found returns a present outcome.
func Found(v string) Outcome { return Outcome{Value: v, Found: true} }

// Absent is the outcome of a field that could not be extracted.
var Absent = Outcome{}

// Candidate is an opaque handle to one post container. It is only
// meaningful to the Tree that produced it.
type Candidate struct {
	ref any
}

// Tree is the query capability the pipeline needs from a parsed document.
type Tree interface {
	// LocatePosts yields one candidate per post container in document order.
	LocatePosts() iter.Seq[Candidate]

	// ExtractField reads one field of a candidate. Failures are reported as
	// Absent, never as errors.
	ExtractField(c Candidate, f Field) Outcome

	// ExtractMedia returns the media sources of a candidate in document order.
	ExtractMedia(c Candidate) []string
}

// goqueryTree implements Tree over a goquery document.
type goqueryTree struct {
	doc *goquery.Document
	sel *compiledSelectors
}

// NewTree parses markup from r and returns a Tree using the given selectors.
func NewTree(r io.Reader, sel Selectors) (Tree, error) {
	compiled, err := sel.compile()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return &goqueryTree{doc: doc, sel: compiled}, nil
}

// NewTreeFromString is NewTree over an in-memory document.
func NewTreeFromString(markup string, sel Selectors) (Tree, error) {
	return NewTree(strings.NewReader(markup), sel)
}

func (t *goqueryTree) LocatePosts() iter.Seq[Candidate] {
	posts := t.doc.FindMatcher(t.sel.post)
	return func(yield func(Candidate) bool) {
		for i := range posts.Nodes {
			if !yield(Candidate{ref: posts.Eq(i)}) {
				return
			}
		}
	}
}

func (t *goqueryTree) ExtractField(c Candidate, f Field) Outcome {
	s, ok := c.ref.(*goquery.Selection)
	if !ok || s.Length() == 0 {
		return Absent
	}

	switch f {
	case FieldPermalink:
		link := s.FindMatcher(t.sel.permalink).First()
		if href, ok := link.Attr("href"); ok {
			return Found(href)
		}
	case FieldText:
		body := s.FindMatcher(t.sel.text).First()
		if body.Length() > 0 {
			return Found(innerText(body.Nodes[0]))
		}
	case FieldTextHTML:
		body := s.FindMatcher(t.sel.text).First()
		if body.Length() > 0 {
			if h, err := body.Html(); err == nil {
				return Found(h)
			}
		}
	case FieldTimestamp:
		tm := s.FindMatcher(t.sel.timestamp).First()
		if v, ok := tm.Attr(t.sel.timeAttr); ok && strings.TrimSpace(v) != "" {
			return Found(strings.TrimSpace(v))
		}
	}
	return Absent
}

func (t *goqueryTree) ExtractMedia(c Candidate) []string {
	s, ok := c.ref.(*goquery.Selection)
	if !ok {
		return nil
	}
	var media []string
	s.FindMatcher(t.sel.media).Each(func(_ int, m *goquery.Selection) {
		if src, ok := m.Attr("src"); ok {
			media = append(media, src)
		}
	})
	return media
}
