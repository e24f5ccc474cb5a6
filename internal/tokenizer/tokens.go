// Package tokenizer provides the resumable XML lexer for XMPP streams.
package tokenizer

// Token kind constants.
//
// Note: The tokenizer emits lexical units only. The assembler is responsible
// for pairing tags, interpreting attributes and decoding entities.
const (
	// Structural tokens
	TokenLAngle = "LAngle" // <
	TokenRAngle = "RAngle" // >
	TokenSlash  = "Slash"  // /
	TokenEquals = "Equals" // =

	// Span tokens
	TokenName        = "Name"        // tag name, attribute name or unquoted value inside a tag
	TokenAttrValue   = "AttrValue"   // quoted attribute value, quotes stripped
	TokenText        = "Text"        // character data between tags
	TokenCommentOpen = "CommentOpen" // the literal !--
	TokenComment     = "Comment"     // a whitespace separated word inside a comment
)

// CommentOpen is the value carried by TokenCommentOpen tokens.
const CommentOpen = "!--"

// Token is a single lexical unit. Structural tokens carry their character as
// Value; span tokens carry decoded text. Tokens carry no position: order alone
// conveys structure.
type Token struct {
	Kind  string
	Value string
}

// String returns the token value, or its kind when the value is empty.
func (t Token) String() string {
	if t.Value == "" {
		return t.Kind
	}
	return t.Value
}

// Listener consumes tokens in stream order. An error aborts the Feed call that
// delivered the token and closes the tokenizer.
type Listener interface {
	Token(tok Token) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(tok Token) error

// Token calls f(tok).
func (f ListenerFunc) Token(tok Token) error {
	return f(tok)
}

var markerKinds = [256]string{
	'<': TokenLAngle,
	'>': TokenRAngle,
	'/': TokenSlash,
	'=': TokenEquals,
}

// markerToken returns the structural token for c.
func markerToken(c byte) Token {
	return Token{Kind: markerKinds[c], Value: string(rune(c))}
}
