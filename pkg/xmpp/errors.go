// Package xmpp provides error types and stream error mapping for XMPP parsing.
package xmpp

import (
	"errors"
	"fmt"
	"io"

	"mellium.im/xmpp/stream"

	"github.com/shapestone/shape-xmpp/internal/buffer"
	"github.com/shapestone/shape-xmpp/internal/parser"
	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

// Common parsing errors. Errors returned by this package wrap one of these;
// classify them with errors.Is.
var (
	// ErrMalformedMarkup indicates a lexical rule was violated (for example "<!x").
	ErrMalformedMarkup = tokenizer.ErrMalformedMarkup

	// ErrInvalidEncoding indicates bytes that are not valid in the stream encoding.
	ErrInvalidEncoding = buffer.ErrInvalidEncoding

	// ErrUnsupportedEncoding indicates an unknown character encoding name.
	ErrUnsupportedEncoding = buffer.ErrUnsupportedEncoding

	// ErrUnexpectedToken indicates a token that does not fit the tag grammar.
	ErrUnexpectedToken = parser.ErrUnexpectedToken

	// ErrUnexpectedEnd indicates an end tag that does not match its start tag.
	ErrUnexpectedEnd = parser.ErrUnexpectedEnd

	// ErrUnexpectedText indicates character data outside any stanza.
	ErrUnexpectedText = parser.ErrUnexpectedText

	// ErrUnknownEntity indicates an entity reference XMPP does not allow.
	ErrUnknownEntity = parser.ErrUnknownEntity

	// ErrTooLargeStanza indicates a stanza exceeded MaxStanzaSize.
	ErrTooLargeStanza = parser.ErrTooLargeStanza

	// ErrTooDeep indicates element nesting exceeded MaxDepth.
	ErrTooDeep = parser.ErrTooDeep

	// ErrUnexpectedRestart indicates a stream header inside an open stream.
	ErrUnexpectedRestart = parser.ErrUnexpectedRestart

	// ErrTokenTooLarge indicates a single token exceeded MaxTokenSize.
	ErrTokenTooLarge = errors.New("xmpp: token exceeds maximum size")
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	// Offset is the byte offset in the input at which the error was detected.
	Offset int64
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// StreamError maps a parsing error to the XMPP stream error condition a
// server should send before closing the stream. Errors this package does not
// produce map to undefined-condition.
func StreamError(err error) stream.Error {
	switch {
	case errors.Is(err, ErrUnsupportedEncoding):
		return stream.UnsupportedEncoding
	case errors.Is(err, ErrTooLargeStanza),
		errors.Is(err, ErrTooDeep),
		errors.Is(err, ErrTokenTooLarge):
		return stream.PolicyViolation
	case errors.Is(err, ErrUnexpectedRestart):
		return stream.BadFormat
	case errors.Is(err, ErrMalformedMarkup),
		errors.Is(err, ErrInvalidEncoding),
		errors.Is(err, ErrUnexpectedToken),
		errors.Is(err, ErrUnexpectedEnd),
		errors.Is(err, ErrUnexpectedText),
		errors.Is(err, ErrUnknownEntity),
		errors.Is(err, io.ErrUnexpectedEOF):
		return stream.NotWellFormed
	default:
		return stream.UndefinedCondition
	}
}
