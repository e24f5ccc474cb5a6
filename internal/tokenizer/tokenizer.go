package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"
	"github.com/shapestone/shape-xmpp/internal/buffer"
)

var (
	// ErrMalformedMarkup indicates a lexical rule was violated. It is terminal.
	ErrMalformedMarkup = errors.New("tokenizer: malformed markup")

	// ErrClosed is returned when feeding a closed tokenizer.
	ErrClosed = errors.New("tokenizer: closed")
)

// Options configures the tokenizer behavior.
type Options struct {
	// StrictComments requires the run before a comment-closing '>' to end in
	// "--". Default: false (the terminator is not validated)
	StrictComments bool
	// OmitEmptyValues drops attribute values that are empty ("" or ''), so no
	// empty span of any kind is emitted. Default: false
	OmitEmptyValues bool
}

// DefaultOptions returns default tokenizer options.
func DefaultOptions() Options {
	return Options{
		StrictComments:  false,
		OmitEmptyValues: false,
	}
}

// Tokenizer is a resumable XML lexer. It is fed successive chunks of one
// byte stream and delivers tokens to its Listener in byte order.
//
// A Tokenizer is not safe for concurrent use. It keeps no reference to the
// buffers it is fed; its only state is the lexical state and the boundary.
type Tokenizer struct {
	listener Listener
	opts     Options

	state State
	// lastPosition is the first byte not yet delivered to the listener.
	lastPosition int
	// boundaryState is the state in effect at lastPosition. Feed resumes
	// from it so bytes re-delivered after a rewind are lexed exactly once.
	boundaryState State
}

// New creates a tokenizer with default options.
func New(l Listener) *Tokenizer {
	return NewWithOptions(l, DefaultOptions())
}

// NewWithOptions creates a tokenizer with custom options.
func NewWithOptions(l Listener, opts Options) *Tokenizer {
	return &Tokenizer{
		listener:      l,
		opts:          opts,
		state:         StateStart,
		boundaryState: StateStart,
	}
}

// State returns the current lexical state.
func (t *Tokenizer) State() State {
	return t.state
}

// Closed reports whether the tokenizer reached CLOSED.
func (t *Tokenizer) Closed() bool {
	return t.state == StateClosed
}

// Close moves the tokenizer to CLOSED. No token is emitted afterwards.
func (t *Tokenizer) Close() {
	t.state = StateClosed
	t.boundaryState = StateClosed
}

// Feed consumes the unread bytes of buf, emitting every complete token.
//
// When the window ends inside a token, the read position is rewound to the
// first byte not yet delivered. The caller must present those bytes again,
// followed by more of the stream, on the next call.
//
// Errors are terminal: the tokenizer is CLOSED afterwards. Listener errors are
// returned unchanged.
func (t *Tokenizer) Feed(buf *buffer.Buffer, dec buffer.Decoder) error {
	if t.state == StateClosed {
		return ErrClosed
	}

	t.lastPosition = buf.Position()
	t.boundaryState = t.state

	for buf.Remaining() && t.state != StateClosed {
		t.scan(buf)

		c, err := buf.NextByte()
		if err != nil {
			break
		}

		tr := step(t.state, c)
		moved, err := t.apply(tr.action, c, buf, dec)
		if err != nil {
			t.Close()
			return err
		}
		if t.state == StateClosed {
			// the listener closed us
			break
		}

		t.state = tr.next
		if moved {
			t.boundaryState = t.state
		}
	}

	// lastPosition is a position this call already read past, so it lies
	// within [0, limit].
	if err := buf.SetPosition(t.lastPosition); err != nil {
		t.Close()
		return err
	}
	if t.state != StateClosed {
		t.state = t.boundaryState
	}
	return nil
}

// scan jumps over bytes that can only extend the pending run.
func (t *Tokenizer) scan(buf *buffer.Buffer) {
	var stop byte
	switch t.state {
	case StateInText:
		stop = '<'
	case StateInDoubleAttrValue:
		stop = '"'
	case StateInSingleAttrValue:
		stop = '\''
	default:
		return
	}

	rest := buf.Rest()
	n := shapetokenizer.FindByte(rest, stop)
	if n < 0 {
		n = len(rest)
	}
	buf.Skip(n)
}

// apply performs the action for byte c, which has just been consumed.
// It reports whether the emission boundary moved.
func (t *Tokenizer) apply(a action, c byte, buf *buffer.Buffer, dec buffer.Decoder) (bool, error) {
	switch a {
	case actionExtend:
		return false, nil

	case actionMarker:
		return true, t.emitMarker(c, buf)

	case actionFlushMarker:
		if err := t.flush(buf, dec); err != nil {
			return true, err
		}
		return true, t.emitMarkerAfterSpan(c, buf)

	case actionFlushOrSkip:
		if t.hasPending(buf) {
			return true, t.flush(buf, dec)
		}
		t.lastPosition = buf.Position()
		return true, nil

	case actionSkip:
		t.lastPosition = buf.Position()
		return true, nil

	case actionValue:
		if !t.hasPending(buf) && t.opts.OmitEmptyValues {
			t.lastPosition = buf.Position()
			return true, nil
		}
		return true, t.emitSpan(buf, dec)

	case actionCommentOpen:
		return true, t.emit(Token{Kind: TokenCommentOpen, Value: CommentOpen}, buf)

	case actionCommentClose:
		if err := t.closeComment(buf, dec); err != nil {
			return true, err
		}
		return true, t.emitMarkerAfterSpan(c, buf)

	default:
		return false, fmt.Errorf("%w: unexpected %q in %s", ErrMalformedMarkup, c, t.state)
	}
}

// hasPending reports whether more than the delimiter was consumed since the
// boundary, i.e. whether the span [lastPosition, pos-1) is non-empty.
func (t *Tokenizer) hasPending(buf *buffer.Buffer) bool {
	return buf.Position() > t.lastPosition+1
}

// flush emits the pending span if it is non-empty.
func (t *Tokenizer) flush(buf *buffer.Buffer, dec buffer.Decoder) error {
	if !t.hasPending(buf) {
		return nil
	}
	return t.emitSpan(buf, dec)
}

// emitSpan decodes [lastPosition, pos-1) and emits it as the span kind of the
// current state.
func (t *Tokenizer) emitSpan(buf *buffer.Buffer, dec buffer.Decoder) error {
	text, err := t.decodePending(buf, dec)
	if err != nil {
		return err
	}
	return t.emit(Token{Kind: spanKinds[t.state], Value: text}, buf)
}

// closeComment emits the run before a comment-closing '>' with its "--"
// terminator removed.
func (t *Tokenizer) closeComment(buf *buffer.Buffer, dec buffer.Decoder) error {
	text := ""
	if t.hasPending(buf) {
		var err error
		if text, err = t.decodePending(buf, dec); err != nil {
			return err
		}
	}

	word, terminated := strings.CutSuffix(text, "--")
	if !terminated && t.opts.StrictComments {
		return fmt.Errorf("%w: comment not terminated by -->", ErrMalformedMarkup)
	}
	if word == "" {
		return nil
	}
	return t.emit(Token{Kind: TokenComment, Value: word}, buf)
}

func (t *Tokenizer) decodePending(buf *buffer.Buffer, dec buffer.Decoder) (string, error) {
	text, err := buf.DecodeRange(t.lastPosition, buf.Position()-1, dec)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedMarkup, err)
	}
	return text, nil
}

func (t *Tokenizer) emitMarker(c byte, buf *buffer.Buffer) error {
	return t.emit(markerToken(c), buf)
}

// emitMarkerAfterSpan emits the delimiter c that ended a span. If the listener
// closed the tokenizer on the span, c was not delivered and the boundary is
// put back in front of it.
func (t *Tokenizer) emitMarkerAfterSpan(c byte, buf *buffer.Buffer) error {
	if t.state == StateClosed {
		t.lastPosition = buf.Position() - 1
		return nil
	}
	return t.emitMarker(c, buf)
}

// emit delivers tok and moves the boundary to the read position.
func (t *Tokenizer) emit(tok Token, buf *buffer.Buffer) error {
	if t.state == StateClosed {
		return nil
	}
	if err := t.listener.Token(tok); err != nil {
		return err
	}
	t.lastPosition = buf.Position()
	return nil
}
