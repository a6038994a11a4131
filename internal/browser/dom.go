package browser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps a parsed HTML document and exposes the selector-probing
// operations the platform adapters need. Every accessor is best-effort:
// a missing selector yields a zero value, never an error.
type Document struct {
	doc *goquery.Document
}

// NewDocument parses an HTML string into a Document.
func NewDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// MustDocument parses HTML and returns nil on failure; for callers that
// treat an unparseable document the same as an absent one.
func MustDocument(html string) *Document {
	doc, err := NewDocument(html)
	if err != nil {
		return nil
	}
	return doc
}

// Exists reports whether any element matches the selector.
func (d *Document) Exists(selector string) bool {
	if d == nil {
		return false
	}
	return d.doc.Find(selector).Length() > 0
}

// Text returns the trimmed text of the first element matching the selector.
func (d *Document) Text(selector string) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// FirstText tries selectors in order and returns the first non-empty
// trimmed text. This is the "ordered CSS selector fallback list" primitive:
// first non-null wins, expressed as data rather than control flow.
func (d *Document) FirstText(selectors ...string) string {
	for _, sel := range selectors {
		if text := d.Text(sel); text != "" {
			return text
		}
	}
	return ""
}

// Each invokes fn for every element matching selector, in document order,
// with an Element snapshot of the node.
func (d *Document) Each(selector string, fn func(i int, el *Element)) {
	if d == nil {
		return
	}
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		fn(i, elementFromSelection(s))
	})
}

// Texts returns trimmed, non-empty texts of all elements matching selector.
func (d *Document) Texts(selector string) []string {
	var out []string
	d.Each(selector, func(_ int, el *Element) {
		if el.Text != "" {
			out = append(out, el.Text)
		}
	})
	return out
}

func elementFromSelection(s *goquery.Selection) *Element {
	el := &Element{
		Tag:   goquery.NodeName(s),
		Text:  strings.TrimSpace(s.Text()),
		Attrs: make(map[string]string),
	}
	if len(s.Nodes) > 0 {
		for _, attr := range s.Nodes[0].Attr {
			el.Attrs[attr.Key] = attr.Val
		}
	}
	return el
}

// Attr returns an attribute of the first element matching selector.
func (d *Document) Attr(selector, name string) string {
	if d == nil {
		return ""
	}
	val, _ := d.doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(val)
}

// Count returns the number of elements matching selector.
func (d *Document) Count(selector string) int {
	if d == nil {
		return 0
	}
	return d.doc.Find(selector).Length()
}

// JSONLD returns every application/ld+json block that decodes to an object.
// Malformed blocks are skipped.
func (d *Document) JSONLD() []map[string]any {
	if d == nil {
		return nil
	}
	var out []map[string]any
	d.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &obj); err == nil {
			out = append(out, obj)
		}
	})
	return out
}

// Element is a lightweight snapshot of a DOM node handed to the click and
// form detectors by the embedding host.
type Element struct {
	Tag   string
	Text  string
	Attrs map[string]string
}

// Attr returns an attribute value, or empty when absent.
func (e *Element) Attr(name string) string {
	if e == nil || e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Href returns the element's href attribute.
func (e *Element) Href() string { return e.Attr("href") }

// Class returns the element's class attribute.
func (e *Element) Class() string { return e.Attr("class") }

// ID returns the element's id attribute.
func (e *Element) ID() string { return e.Attr("id") }

// HasClass reports whether the element carries the given class name.
func (e *Element) HasClass(name string) bool {
	for _, c := range strings.Fields(e.Class()) {
		if c == name {
			return true
		}
	}
	return false
}

// FormField is one field of a submitted form. Value is the raw submitted
// value; detectors decide what of it may leave the page.
type FormField struct {
	Name  string
	Type  string
	Value string
}

// Form is a snapshot of a submitted <form>.
type Form struct {
	Element
	Action string
	Fields []FormField
}
