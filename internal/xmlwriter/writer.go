// Package xmlwriter builds small XML documents as element trees and writes
// them with stable indentation. Element and attribute order is exactly the
// insertion order, which the fixed-schema serializers rely on.
package xmlwriter

import (
	"bytes"
	"strings"
)

// Attr is a single attribute
type Attr struct {
	Name  string
	Value string
}

// Element is a node holding either a text value or children
type Element struct {
	Name     string
	Attrs    []Attr
	Value    string
	Children []*Element
}

// New creates an element
func New(name string, attrs ...Attr) *Element {
	return &Element{Name: name, Attrs: attrs}
}

// SetAttr appends an attribute and returns the element
func (e *Element) SetAttr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Child appends an empty child element and returns it
func (e *Element) Child(name string, attrs ...Attr) *Element {
	c := New(name, attrs...)
	e.Children = append(e.Children, c)
	return c
}

// Text appends a child carrying a text value and returns it
func (e *Element) Text(name, value string, attrs ...Attr) *Element {
	c := e.Child(name, attrs...)
	c.Value = value
	return c
}

// TextIf appends a text child only when value is not blank
func (e *Element) TextIf(name, value string, attrs ...Attr) {
	if strings.TrimSpace(value) == "" {
		return
	}
	e.Text(name, value, attrs...)
}

// Options controls document output
type Options struct {
	// Indent is repeated once per nesting level. Default: two spaces
	Indent string

	// Declaration prepends <?xml version="1.0" encoding="UTF-8"?>
	Declaration bool
}

// DefaultOptions returns two-space indentation with a declaration
func DefaultOptions() Options {
	return Options{Indent: "  ", Declaration: true}
}

// Render writes root and its subtree
func Render(root *Element, opts Options) string {
	var buffer bytes.Buffer
	if opts.Declaration {
		buffer.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	}
	if root != nil {
		writeElement(&buffer, root, opts.Indent, 0)
	}
	return buffer.String()
}

// writeElement writes an element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element *Element, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.Name)
	for _, attr := range element.Attrs {
		buffer.WriteString(" ")
		buffer.WriteString(attr.Name)
		buffer.WriteString("=\"")
		buffer.WriteString(EscapeXML(attr.Value))
		buffer.WriteString("\"")
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if len(element.Children) == 0 {
		buffer.WriteString(EscapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.Name)
	buffer.WriteString(">\n")
}

// EscapeXML escapes & < > " and ' for use in text and attribute values
func EscapeXML(s string) string {
	if !strings.ContainsAny(s, "&<>\"'") {
		return s
	}

	var buffer bytes.Buffer
	buffer.Grow(len(s) + 16)
	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}
	return buffer.String()
}
