// Package xmpp provides stanza rendering to XML bytes.
package xmpp

import (
	"bytes"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
)

// Render converts a stanza to XML bytes that Parse reads back to an equal
// element.
//
// Rendering handles:
//   - Escaping of &, < and > in text, plus quotes in attribute values
//   - Self-closing tags for elements without text or children
//   - Text before children (mixed content is not preserved)
//
// Example:
//
//	stanzas, _ := xmpp.Parse(`<message to='a@b'><body>1 &lt; 2</body></message>`)
//	out, _ := xmpp.Render(stanzas[0])
//	// out: <message to="a@b"><body>1 &lt; 2</body></message>
func Render(el stravaganza.Element) ([]byte, error) {
	if el == nil {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	renderElement(el, &buf)
	return buf.Bytes(), nil
}

// RenderHeader renders a stream header as an open <stream:stream> tag.
func RenderHeader(hdr StreamHeader) []byte {
	var buf bytes.Buffer
	name := hdr.Name
	if name == "" {
		name = "stream:stream"
	}
	buf.WriteByte('<')
	buf.WriteString(name)
	for _, a := range hdr.Attributes {
		writeAttribute(&buf, a)
	}
	buf.WriteByte('>')
	return buf.Bytes()
}

func renderElement(el stravaganza.Element, buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(el.Name())
	for _, a := range el.AllAttributes() {
		writeAttribute(buf, a)
	}

	text := el.Text()
	children := el.AllChildren()
	if text == "" && len(children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')

	textEscaper.WriteString(buf, text)
	for _, child := range children {
		renderElement(child, buf)
	}

	buf.WriteString("</")
	buf.WriteString(el.Name())
	buf.WriteByte('>')
}

func writeAttribute(buf *bytes.Buffer, a stravaganza.Attribute) {
	buf.WriteByte(' ')
	buf.WriteString(a.Label)
	buf.WriteString(`="`)
	attrEscaper.WriteString(buf, a.Value)
	buf.WriteByte('"')
}

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)
