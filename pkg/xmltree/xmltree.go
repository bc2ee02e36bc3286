// Package xmltree provides a generic, tag-name driven XML element tree.
// Tally responses do not follow a fixed schema: a wrapping element may
// appear once or many times depending on the result set, so callers
// navigate by name instead of unmarshaling into rigid structs.
package xmltree

import (
	"encoding/xml"
	"io"
	"strings"
)

// Element is a single XML element with its attributes, character data
// and child elements in document order.
type Element struct {
	Name     string
	Attr     map[string]string
	Text     string
	Children []*Element
}

// Parse reads an XML document and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	// Tally declares legacy encodings; the payload is ASCII-compatible.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.Attr = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.Attr[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					// Trailing junk after the document element.
					return root, nil
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

// ParseString parses an XML document held in a string.
func ParseString(s string) (*Element, error) {
	return Parse(strings.NewReader(s))
}

// First returns the first direct child with the given name, or nil.
func (e *Element) First(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// All returns every direct child with the given name. A tag that occurs
// once and a tag that occurs many times come back the same way, which is
// the only sane footing for Tally's one-or-many response shapes.
func (e *Element) All(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find descends through the named path, taking the first match at each
// level. Returns nil if any segment is missing.
func (e *Element) Find(path ...string) *Element {
	cur := e
	for _, name := range path {
		cur = cur.First(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Value returns the element's character data with surrounding
// whitespace trimmed. Safe to call on nil.
func (e *Element) Value() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text)
}

// ChildValue returns the trimmed text of the first child with the given
// name, or the empty string.
func (e *Element) ChildValue(name string) string {
	return e.First(name).Value()
}
