// Package xmpp provides configurable options for XMPP stream parsing.
package xmpp

import (
	"github.com/go-logr/logr"

	"github.com/shapestone/shape-xmpp/internal/buffer"
	"github.com/shapestone/shape-xmpp/internal/parser"
	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

// ReaderOptions configures XMPP stream parsing behavior.
type ReaderOptions struct {
	// Encoding is the IANA name of the stream's character encoding.
	// Default: "UTF-8"
	Encoding string

	// ReadBufferSize is the size of each read from the underlying reader.
	// Default: 4096
	ReadBufferSize int

	// MaxTokenSize is the largest single token (tag name, attribute value,
	// text run) the Scanner will grow its buffer to hold. 0 means no limit.
	// Default: 1 MiB
	MaxTokenSize int

	// MaxStanzaSize is the maximum number of bytes a single stanza may span.
	// The stream header, keepalive whitespace and stream-level comments are
	// not counted. 0 means no limit.
	// Default: 0
	MaxStanzaSize int

	// MaxDepth is the maximum element nesting inside a stanza.
	// 0 means no limit.
	// Default: 0
	MaxDepth int

	// StrictComments requires comments to end in "-->".
	// Default: false
	StrictComments bool

	// OmitEmptyValues makes the tokenizer drop empty attribute values. The
	// attribute is still reported with an empty value.
	// Default: false
	OmitEmptyValues bool

	// Logger receives stream lifecycle (V(1)) and per-stanza (V(2)) messages
	// and the error that tears a stream down.
	// Default: logr.Discard()
	Logger logr.Logger
}

// DefaultReaderOptions returns the default reader configuration.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Encoding:       "UTF-8",
		ReadBufferSize: buffer.DefaultChunkSize,
		MaxTokenSize:   1 << 20,
		Logger:         logr.Discard(),
	}
}

// Validate checks if the options are valid.
// Returns an error if the options are invalid.
func (o ReaderOptions) Validate() error {
	if o.ReadBufferSize <= 0 {
		return &OptionsError{Field: "ReadBufferSize", Message: "must be positive"}
	}
	if o.MaxTokenSize < 0 {
		return &OptionsError{Field: "MaxTokenSize", Message: "must not be negative"}
	}
	if o.MaxTokenSize > 0 && o.MaxTokenSize < o.ReadBufferSize {
		return &OptionsError{Field: "MaxTokenSize", Message: "smaller than ReadBufferSize"}
	}
	if o.MaxStanzaSize < 0 {
		return &OptionsError{Field: "MaxStanzaSize", Message: "must not be negative"}
	}
	if o.MaxDepth < 0 {
		return &OptionsError{Field: "MaxDepth", Message: "must not be negative"}
	}
	if _, err := buffer.Lookup(o.Encoding); err != nil {
		return &OptionsError{Field: "Encoding", Message: err.Error()}
	}
	return nil
}

func (o ReaderOptions) tokenizerOptions() tokenizer.Options {
	return tokenizer.Options{
		StrictComments:  o.StrictComments,
		OmitEmptyValues: o.OmitEmptyValues,
	}
}

func (o ReaderOptions) parserOptions() parser.Options {
	return parser.Options{
		MaxStanzaSize: o.MaxStanzaSize,
		MaxDepth:      o.MaxDepth,
		Logger:        o.Logger,
	}
}

// OptionsError represents an invalid option configuration.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "xmpp: invalid " + e.Field + ": " + e.Message
}
