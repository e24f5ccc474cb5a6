// Package parser assembles XMPP stanzas from the token stream produced by
// internal/tokenizer. Each production of the tag grammar below corresponds to
// a parse mode of the Parser.
//
// Grammar (over tokens):
//
//	Content  = { Text | Tag } ;
//	Tag      = "<" ( StartTag | EndTag | Comment | ProcInst ) ;
//	StartTag = Name { Attr } ( ">" | "/" ">" ) ;
//	Attr     = Name "=" [ AttrValue ] ;
//	EndTag   = "/" Name ">" ;
//	Comment  = CommentOpen { CommentWord } ">" ;
//	ProcInst = "?"Name { any } ">" ;
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jackal-xmpp/stravaganza/v2"

	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

const rootElementIndex = -1

const (
	streamName   = "stream"
	streamPrefix = "stream:"
)

var (
	// ErrUnexpectedToken is returned when a token does not fit the tag grammar.
	ErrUnexpectedToken = errors.New("parser: unexpected token")

	// ErrUnexpectedEnd is returned for an end tag that does not match the
	// innermost open element.
	ErrUnexpectedEnd = errors.New("parser: unexpected end element")

	// ErrUnexpectedText is returned for non-whitespace text outside any stanza.
	ErrUnexpectedText = errors.New("parser: unexpected text at stream level")

	// ErrUnknownEntity is returned for entity references other than the five
	// predefined ones and character references.
	ErrUnknownEntity = errors.New("parser: unknown entity")

	// ErrTooLargeStanza is returned when a stanza exceeds MaxStanzaSize.
	ErrTooLargeStanza = errors.New("parser: too large stanza")

	// ErrTooDeep is returned when element nesting exceeds MaxDepth.
	ErrTooDeep = errors.New("parser: element nesting too deep")

	// ErrUnexpectedRestart is returned for a stream header inside an open stream.
	ErrUnexpectedRestart = errors.New("parser: unexpected stream restart")
)

// Options configures the parser behavior.
type Options struct {
	// MaxStanzaSize is the maximum number of token bytes a single stanza may
	// span, from its opening "<" to its last ">". Stream-level bytes outside
	// stanzas do not count. 0 means no limit.
	MaxStanzaSize int
	// MaxDepth is the maximum element nesting inside a stanza. 0 means no limit.
	MaxDepth int
	// Logger receives stream lifecycle (V(1)) and per-stanza (V(2)) messages.
	Logger logr.Logger
}

// DefaultOptions returns default parser options.
func DefaultOptions() Options {
	return Options{
		MaxStanzaSize: 0,
		MaxDepth:      0,
		Logger:        logr.Discard(),
	}
}

// StreamHeader is the opening <stream:stream> tag of an XMPP stream.
type StreamHeader struct {
	Name       string
	Attributes []stravaganza.Attribute
}

// Attribute returns the value of the header attribute with the given label,
// or "" if it is absent.
func (h StreamHeader) Attribute(label string) string {
	for _, a := range h.Attributes {
		if a.Label == label {
			return a.Value
		}
	}
	return ""
}

// Handler receives assembled stream events in order.
type Handler interface {
	StreamOpen(hdr StreamHeader) error
	Stanza(elem stravaganza.Element) error
	StreamClose() error
}

// mode is what the parser expects from the next token.
type mode uint8

const (
	modeContent    mode = iota // between tags
	modeTagStart               // after "<"
	modeAttrs                  // inside a start tag, between attributes
	modeAttrEquals             // after an attribute name
	modeAttrValue              // after "="
	modeSelfClose              // after "/" in a start tag
	modeEndName                // after "</"
	modeEndClose               // after the end tag name
	modeComment                // inside <!-- ... >
	modeProcInst               // inside <? ... >
)

// Parser assembles stanzas. It implements tokenizer.Listener.
type Parser struct {
	handler Handler
	opts    Options
	log     logr.Logger

	mode     mode
	inStream bool

	// open elements; index 0 is the stanza root
	stack  []*stravaganza.Builder
	names  []string
	texts  []string
	pIndex int

	// tag under construction
	tagName  string
	attrs    []stravaganza.Attribute
	attrName string

	size int
}

// NewParser creates a parser delivering events to h.
func NewParser(h Handler) *Parser {
	return NewParserWithOptions(h, DefaultOptions())
}

// NewParserWithOptions creates a parser with custom options.
func NewParserWithOptions(h Handler, opts Options) *Parser {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Parser{
		handler: h,
		opts:    opts,
		log:     opts.Logger.WithName("parser"),
		pIndex:  rootElementIndex,
	}
}

// InStream reports whether a stream header has been seen and not yet closed.
func (p *Parser) InStream() bool {
	return p.inStream
}

// Depth returns the number of open elements of the stanza being assembled.
func (p *Parser) Depth() int {
	return p.pIndex + 1
}

// Token consumes a single token.
func (p *Parser) Token(tok tokenizer.Token) error {
	if p.pIndex == rootElementIndex && p.mode == modeContent {
		p.size = 0
	}
	p.size += p.stanzaBytes(tok)
	if p.opts.MaxStanzaSize > 0 && p.size > p.opts.MaxStanzaSize {
		return fmt.Errorf("%w: more than %d bytes", ErrTooLargeStanza, p.opts.MaxStanzaSize)
	}

	switch p.mode {
	case modeContent:
		return p.parseContent(tok)
	case modeTagStart:
		return p.parseTagStart(tok)
	case modeAttrs:
		return p.parseAttrs(tok)
	case modeAttrEquals:
		if tok.Kind != tokenizer.TokenEquals {
			return p.unexpected(tok, "attribute "+p.attrName)
		}
		p.mode = modeAttrValue
		return nil
	case modeAttrValue:
		return p.parseAttrValue(tok)
	case modeSelfClose:
		if tok.Kind != tokenizer.TokenRAngle {
			return p.unexpected(tok, "/ in <"+p.tagName)
		}
		p.mode = modeContent
		if err := p.openElement(); err != nil {
			return err
		}
		return p.closeElement(p.tagName)
	case modeEndName:
		if tok.Kind != tokenizer.TokenName {
			return p.unexpected(tok, "</")
		}
		p.tagName = tok.Value
		p.mode = modeEndClose
		return nil
	case modeEndClose:
		if tok.Kind != tokenizer.TokenRAngle {
			return p.unexpected(tok, "</"+p.tagName)
		}
		p.mode = modeContent
		return p.closeElement(p.tagName)
	case modeComment, modeProcInst:
		if tok.Kind == tokenizer.TokenRAngle {
			p.mode = modeContent
		}
		return nil
	default:
		return p.unexpected(tok, "unknown mode")
	}
}

// stanzaBytes returns how many bytes tok adds to the stanza being assembled.
// Tokens of the stream header, comments and processing instructions at stream
// level, and whitespace between stanzas count for nothing.
func (p *Parser) stanzaBytes(tok tokenizer.Token) int {
	if p.pIndex != rootElementIndex {
		return len(tok.Value)
	}
	switch p.mode {
	case modeTagStart:
		// the "<" was seen before the name told whether a stanza starts
		if tok.Kind == tokenizer.TokenName && !strings.HasPrefix(tok.Value, "?") && !isStreamName(tok.Value) {
			return len("<") + len(tok.Value)
		}
	case modeAttrs, modeAttrEquals, modeAttrValue, modeSelfClose:
		if !isStreamName(p.tagName) {
			return len(tok.Value)
		}
	}
	return 0
}

// parseContent handles tokens between tags.
//
// Grammar:
//
//	Content = { Text | Tag } ;
func (p *Parser) parseContent(tok tokenizer.Token) error {
	switch tok.Kind {
	case tokenizer.TokenLAngle:
		p.mode = modeTagStart
		return nil
	case tokenizer.TokenText:
		return p.setElementText(tok.Value)
	default:
		return p.unexpected(tok, "content")
	}
}

// parseTagStart dispatches on the token following "<".
//
// Grammar:
//
//	Tag = "<" ( StartTag | EndTag | Comment | ProcInst ) ;
func (p *Parser) parseTagStart(tok tokenizer.Token) error {
	switch tok.Kind {
	case tokenizer.TokenSlash:
		p.mode = modeEndName
	case tokenizer.TokenCommentOpen:
		p.mode = modeComment
	case tokenizer.TokenName:
		if strings.HasPrefix(tok.Value, "?") {
			p.mode = modeProcInst
			return nil
		}
		p.tagName = tok.Value
		p.attrs = nil
		p.mode = modeAttrs
	default:
		return p.unexpected(tok, "<")
	}
	return nil
}

// parseAttrs handles tokens inside a start tag.
//
// Grammar:
//
//	StartTag = Name { Attr } ( ">" | "/" ">" ) ;
func (p *Parser) parseAttrs(tok tokenizer.Token) error {
	switch tok.Kind {
	case tokenizer.TokenName:
		p.attrName = tok.Value
		p.mode = modeAttrEquals
	case tokenizer.TokenSlash:
		p.mode = modeSelfClose
	case tokenizer.TokenRAngle:
		p.mode = modeContent
		return p.openElement()
	default:
		return p.unexpected(tok, "<"+p.tagName)
	}
	return nil
}

// parseAttrValue handles the token after "=".
//
// Grammar:
//
//	Attr = Name "=" [ AttrValue ] ;
//
// Anything but a value right after "=" means the tokenizer omitted an empty
// value: the attribute is recorded empty and tok goes on as the next part of
// the start tag. Unquoted values are therefore never accepted.
func (p *Parser) parseAttrValue(tok tokenizer.Token) error {
	switch tok.Kind {
	case tokenizer.TokenAttrValue:
		v, err := unescape(tok.Value)
		if err != nil {
			return err
		}
		p.addAttribute(v)
		p.mode = modeAttrs
		return nil
	case tokenizer.TokenName, tokenizer.TokenSlash, tokenizer.TokenRAngle:
		p.addAttribute("")
		p.mode = modeAttrs
		return p.parseAttrs(tok)
	default:
		return p.unexpected(tok, p.attrName+"=")
	}
}

func (p *Parser) addAttribute(value string) {
	p.attrs = append(p.attrs, stravaganza.Attribute{Label: p.attrName, Value: value})
	p.attrName = ""
}

// openElement pushes the start tag under construction.
func (p *Parser) openElement() error {
	if p.pIndex == rootElementIndex && isStreamName(p.tagName) {
		return p.openStream()
	}
	if p.opts.MaxDepth > 0 && p.pIndex+1 >= p.opts.MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrTooDeep, p.opts.MaxDepth)
	}

	builder := stravaganza.NewBuilder(p.tagName).WithAttributes(p.attrs...)
	p.stack = append(p.stack, builder)
	p.names = append(p.names, p.tagName)
	p.texts = append(p.texts, "")
	p.pIndex = len(p.stack) - 1
	p.attrs = nil
	return nil
}

func (p *Parser) openStream() error {
	if p.inStream {
		return ErrUnexpectedRestart
	}
	hdr := StreamHeader{Name: p.tagName, Attributes: p.attrs}
	p.attrs = nil
	p.inStream = true

	p.log.V(1).Info("stream opened", "name", hdr.Name, "to", hdr.Attribute("to"))
	return p.handler.StreamOpen(hdr)
}

// closeElement pops the innermost open element, checking its name.
func (p *Parser) closeElement(name string) error {
	if p.pIndex == rootElementIndex {
		if p.inStream && isStreamName(name) {
			p.inStream = false
			p.log.V(1).Info("stream closed", "name", name)
			return p.handler.StreamClose()
		}
		return errUnexpectedEnd(name)
	}

	if p.names[p.pIndex] != name {
		return errUnexpectedEnd(name)
	}

	builder := p.stack[p.pIndex]
	if text := p.texts[p.pIndex]; text != "" {
		builder = builder.WithText(text)
	}
	element := builder.Build()

	p.stack = p.stack[:p.pIndex]
	p.names = p.names[:p.pIndex]
	p.texts = p.texts[:p.pIndex]
	p.pIndex = len(p.stack) - 1

	if p.pIndex != rootElementIndex {
		p.stack[p.pIndex] = p.stack[p.pIndex].WithChild(element)
		return nil
	}

	p.log.V(2).Info("stanza", "name", element.Name())
	return p.handler.Stanza(element)
}

// setElementText appends character data to the innermost open element.
func (p *Parser) setElementText(raw string) error {
	if p.pIndex == rootElementIndex {
		if strings.TrimLeft(raw, " \t\r\n") != "" {
			return fmt.Errorf("%w: %q", ErrUnexpectedText, raw)
		}
		return nil
	}

	text, err := unescape(raw)
	if err != nil {
		return err
	}
	p.texts[p.pIndex] += text
	return nil
}

func (p *Parser) unexpected(tok tokenizer.Token, after string) error {
	return fmt.Errorf("%w: %s %q after %s", ErrUnexpectedToken, tok.Kind, tok.Value, after)
}

func errUnexpectedEnd(name string) error {
	return fmt.Errorf("%w </%s>", ErrUnexpectedEnd, name)
}

// isStreamName reports whether name is the stream root element.
func isStreamName(name string) bool {
	return name == streamName || name == streamPrefix+streamName
}
