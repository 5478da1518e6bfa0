package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// blockElements start a new line when rendered.
var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// textBuffer collapses whitespace the way rendered text does: a run of
// spaces becomes one space, and no space starts or ends a line.
type textBuffer struct {
	buf []byte
}

func (t *textBuffer) text(s string) {
	if s == "" {
		return
	}
	if isCollapsible(rune(s[0])) {
		t.space()
	}
	for i, f := range strings.FieldsFunc(s, isCollapsible) {
		if i > 0 {
			t.space()
		}
		t.buf = append(t.buf, f...)
	}
	if isCollapsible(rune(s[len(s)-1])) {
		t.space()
	}
}

// space marks a pending separator; it is dropped at line starts and
// before newlines.
func (t *textBuffer) space() {
	if n := len(t.buf); n > 0 && t.buf[n-1] != ' ' && t.buf[n-1] != '\n' {
		t.buf = append(t.buf, ' ')
	}
}

func (t *textBuffer) newline() {
	t.buf = []byte(strings.TrimRight(string(t.buf), " "))
	t.buf = append(t.buf, '\n')
}

func (t *textBuffer) atLineStart() bool {
	return len(t.buf) == 0 || t.buf[len(t.buf)-1] == '\n'
}

func (t *textBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}

func isCollapsible(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// innerText renders the visible text of n. Whitespace runs inside text
// nodes collapse to one space, <br> and block boundaries become newlines,
// and <img> contributes its alt text so emoji images survive as characters.
func innerText(n *html.Node) string {
	var b textBuffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.text(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "br":
				b.newline()
				return
			case "img":
				for _, a := range n.Attr {
					if a.Key == "alt" {
						b.text(a.Val)
					}
				}
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block && !b.atLineStart() {
			b.newline()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}
