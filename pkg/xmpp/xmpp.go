// Package xmpp provides incremental parsing of XMPP XML streams.
//
// The bytes of an XMPP session arrive in arbitrary chunks from the network.
// This package lexes them with a resumable tokenizer that never blocks and
// never buffers more than the token in progress, and assembles the tokens
// into stanzas (the top-level children of <stream:stream>).
//
// Grammar: see internal/parser for the tag grammar over tokens.
//
// # Thread Safety
//
// Parse, ParseReader, Tokenize and Validate are safe for concurrent use by
// multiple goroutines. Each call creates its own tokenizer and parser. A
// Scanner is not safe for concurrent use; use one per connection.
//
// # Parsing APIs
//
//   - NewScanner(io.Reader) - reads stanzas one at a time from a live stream
//   - Parse(string) / ParseReader(io.Reader) - collects every stanza of a document
//   - Tokenize(string) - returns the raw token sequence
//
// # Example usage with Scanner:
//
//	scanner := xmpp.NewScanner(conn)
//	for scanner.Scan() {
//	    route(scanner.Stanza())
//	}
//	if err := scanner.Err(); err != nil {
//	    cond := xmpp.StreamError(err)
//	    // write cond to the peer and close the connection
//	}
//
// # Example usage with Parse:
//
//	stanzas, err := xmpp.Parse(`<message to='juliet@example.com'><body>hi</body></message>`)
//	if err != nil {
//	    // handle error
//	}
//	fmt.Println(stanzas[0].Child("body").Text())
package xmpp

import (
	"io"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"

	"github.com/shapestone/shape-xmpp/internal/buffer"
	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

// Token is a single lexical unit of an XMPP stream.
type Token = tokenizer.Token

// Token kinds.
const (
	TokenLAngle      = tokenizer.TokenLAngle
	TokenRAngle      = tokenizer.TokenRAngle
	TokenSlash       = tokenizer.TokenSlash
	TokenEquals      = tokenizer.TokenEquals
	TokenName        = tokenizer.TokenName
	TokenAttrValue   = tokenizer.TokenAttrValue
	TokenText        = tokenizer.TokenText
	TokenCommentOpen = tokenizer.TokenCommentOpen
	TokenComment     = tokenizer.TokenComment
)

// Parse parses every stanza of an XMPP document held in memory.
//
// The input may be a complete stream (<stream:stream>...</stream:stream>),
// a stream that was never closed, or a bare sequence of stanzas.
//
// For parsing network connections or large inputs, use NewScanner instead.
//
// Example:
//
//	stanzas, err := xmpp.Parse("<presence/><presence type='unavailable'/>")
//	// len(stanzas) == 2
func Parse(input string) ([]stravaganza.Element, error) {
	return ParseWithOptions(input, DefaultReaderOptions())
}

// ParseWithOptions parses every stanza of an in-memory document with custom options.
//
// Example:
//
//	opts := xmpp.DefaultReaderOptions()
//	opts.MaxStanzaSize = 64 * 1024
//	stanzas, err := xmpp.ParseWithOptions(input, opts)
func ParseWithOptions(input string, opts ReaderOptions) ([]stravaganza.Element, error) {
	return ParseReaderWithOptions(strings.NewReader(input), opts)
}

// ParseReader parses every stanza read from an io.Reader until EOF or the
// stream end tag.
//
// Example:
//
//	file, _ := os.Open("session.xml")
//	defer file.Close()
//	stanzas, err := xmpp.ParseReader(file)
func ParseReader(reader io.Reader) ([]stravaganza.Element, error) {
	return ParseReaderWithOptions(reader, DefaultReaderOptions())
}

// ParseReaderWithOptions parses every stanza read from an io.Reader with custom options.
func ParseReaderWithOptions(reader io.Reader, opts ReaderOptions) ([]stravaganza.Element, error) {
	var stanzas []stravaganza.Element
	s := NewScannerWithOptions(reader, opts)
	for s.Scan() {
		stanzas = append(stanzas, s.Stanza())
	}
	return stanzas, s.Err()
}

// Tokenize returns the token sequence of input.
//
// Tokenize is lexical only: it does not check that tags nest. It fails if
// input is malformed at the lexical level or ends inside a token. Trailing
// whitespace is ignored.
//
// Example:
//
//	tokens, _ := xmpp.Tokenize("<a b='1'/>")
//	// <, a, b, =, 1, /, >
func Tokenize(input string) ([]Token, error) {
	return TokenizeWithOptions(input, DefaultReaderOptions())
}

// TokenizeWithOptions returns the token sequence of input with custom options.
// Only Encoding, StrictComments and OmitEmptyValues apply.
func TokenizeWithOptions(input string, opts ReaderOptions) ([]Token, error) {
	dec, err := buffer.Lookup(opts.Encoding)
	if err != nil {
		return nil, err
	}

	var tokens []Token
	tok := tokenizer.NewWithOptions(tokenizer.ListenerFunc(func(t Token) error {
		tokens = append(tokens, t)
		return nil
	}), opts.tokenizerOptions())

	buf := buffer.New([]byte(input))
	if err := tok.Feed(buf, dec); err != nil {
		return tokens, &ParseError{Offset: int64(buf.Position()), Err: err}
	}

	rest := strings.TrimLeft(string(buf.Rest()), " \t\r\n")
	if rest != "" || tok.State() != tokenizer.StateStart {
		return tokens, &ParseError{Offset: int64(buf.Position()), Err: io.ErrUnexpectedEOF}
	}
	return tokens, nil
}

// Format returns the format identifier for this parser.
func Format() string {
	return "XMPP"
}

// Validate checks if the input string is a well-formed XMPP stream or
// stanza sequence.
//
// Returns nil if the input is valid, or a *ParseError describing why not:
//
//	if err := xmpp.Validate(input); err != nil {
//	    fmt.Println("Invalid XMPP:", err)
//	}
func Validate(input string) error {
	return ValidateReader(strings.NewReader(input))
}

// ValidateReader checks if the stream read from reader is well formed.
// Stanzas are discarded as they complete, so memory use is bounded by the
// largest stanza rather than by the input.
func ValidateReader(reader io.Reader) error {
	s := NewScanner(reader)
	for s.Scan() {
	}
	return s.Err()
}
