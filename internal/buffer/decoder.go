package buffer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	// ErrInvalidEncoding is returned when a byte range is not valid text in
	// the decoder's encoding, for example a multi-byte sequence cut at the end.
	ErrInvalidEncoding = errors.New("buffer: invalid encoding")

	// ErrUnsupportedEncoding is returned by Lookup for unknown charset names.
	ErrUnsupportedEncoding = errors.New("buffer: unsupported encoding")
)

// Decoder turns a byte range into text. Implementations must not retain b.
type Decoder interface {
	Decode(b []byte) (string, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(b []byte) (string, error)

// Decode calls f(b).
func (f DecoderFunc) Decode(b []byte) (string, error) {
	return f(b)
}

// UTF8 decodes strict UTF-8 and rejects invalid or truncated sequences.
var UTF8 Decoder = DecoderFunc(decodeUTF8)

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidEncoding, b)
	}
	return string(b), nil
}

// textDecoder wraps a golang.org/x/text encoding.
type textDecoder struct {
	enc encoding.Encoding
}

// NewDecoder returns a Decoder backed by enc.
func NewDecoder(enc encoding.Encoding) Decoder {
	return textDecoder{enc: enc}
}

func (d textDecoder) Decode(b []byte) (string, error) {
	// encoding.Decoder is stateful, so each call gets its own.
	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return string(out), nil
}

// Lookup resolves an IANA charset name to a Decoder.
// UTF-8 resolves to the strict UTF8 decoder.
func Lookup(name string) (Decoder, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}
	if enc == nil {
		// registered with IANA but not implemented by x/text
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}
	return NewDecoder(enc), nil
}
