package xmpp

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jackal-xmpp/stravaganza/v2"

	"github.com/shapestone/shape-xmpp/internal/buffer"
	"github.com/shapestone/shape-xmpp/internal/parser"
	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

// StreamHeader is the opening <stream:stream> tag of an XMPP stream.
type StreamHeader = parser.StreamHeader

// Scanner provides a streaming interface for reading stanzas one at a time.
// It reads the underlying reader in fixed-size chunks and keeps only the
// bytes of the token in progress between reads, so memory stays bounded no
// matter how long the stream runs.
//
// Example usage:
//
//	scanner := xmpp.NewScanner(conn)
//	for scanner.Scan() {
//	    stanza := scanner.Stanza()
//	    fmt.Println(stanza.Name(), stanza.Attribute("to"))
//	}
//	if err := scanner.Err(); err != nil {
//	    // send xmpp.StreamError(err) and close the connection
//	}
type Scanner struct {
	reader io.Reader
	opts   ReaderOptions
	log    logr.Logger

	started bool
	dec     buffer.Decoder
	chunk   []byte
	buf     *buffer.Buffer
	tok     *tokenizer.Tokenizer
	parser  *parser.Parser
	events  streamEvents

	// offset is the input offset of the first byte in buf's storage.
	offset int64
	eof    bool
	done   bool
	// pending is reported once the events queued before it are consumed.
	pending error

	stanza    stravaganza.Element
	header    StreamHeader
	hasHeader bool
	closed    bool
	err       error
}

// NewScanner creates a new Scanner that reads an XMPP stream from the given
// io.Reader with default options.
func NewScanner(reader io.Reader) *Scanner {
	return NewScannerWithOptions(reader, DefaultReaderOptions())
}

// NewScannerWithOptions creates a new Scanner with custom options.
// Invalid options are reported by the first call to Scan.
func NewScannerWithOptions(reader io.Reader, opts ReaderOptions) *Scanner {
	s := &Scanner{reader: reader, opts: opts}
	return s.SetLogger(opts.Logger)
}

// SetMaxStanzaSize sets the maximum number of bytes a single stanza may span.
// It must be called before the first Scan.
// Returns the Scanner for method chaining.
func (s *Scanner) SetMaxStanzaSize(n int) *Scanner {
	s.opts.MaxStanzaSize = n
	return s
}

// SetMaxDepth sets the maximum element nesting inside a stanza.
// It must be called before the first Scan.
// Returns the Scanner for method chaining.
func (s *Scanner) SetMaxDepth(n int) *Scanner {
	s.opts.MaxDepth = n
	return s
}

// SetLogger sets the logger. It must be called before the first Scan.
// Returns the Scanner for method chaining.
func (s *Scanner) SetLogger(l logr.Logger) *Scanner {
	if l.GetSink() == nil {
		l = logr.Discard()
	}
	s.opts.Logger = l
	s.log = l.WithName("scanner")
	return s
}

// Scan advances the scanner to the next stanza.
// It returns false when the stream is closed, the input ends, or an error
// occurs. After Scan returns false, the Err method will return any error
// that occurred.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	if !s.started {
		if err := s.start(); err != nil {
			s.fail(err)
			return false
		}
	}

	s.stanza = nil
	for {
		if ev, ok := s.events.Pop(); ok {
			switch ev.Kind {
			case parser.EventStreamOpen:
				s.header = ev.Header
				s.hasHeader = true
			case parser.EventStanza:
				s.stanza = ev.Element
				return true
			case parser.EventStreamClose:
				s.closed = true
				s.finish()
				return false
			}
			continue
		}

		if s.pending != nil {
			s.fail(s.pending)
			return false
		}
		if s.eof {
			if err := s.checkEnd(); err != nil {
				s.fail(err)
				return false
			}
			s.finish()
			return false
		}

		// bytes read alongside an error are still fed, and stanzas they
		// complete are delivered before the error
		if err := s.read(); err != nil {
			s.pending = err
		}
		if err := s.tok.Feed(s.buf, s.dec); err != nil && s.pending == nil {
			s.pending = s.parseError(err)
		}
	}
}

// Stanza returns the stanza read by the last successful Scan.
func (s *Scanner) Stanza() stravaganza.Element {
	return s.stanza
}

// Header returns the stream header and whether one has been read.
func (s *Scanner) Header() (StreamHeader, bool) {
	return s.header, s.hasHeader
}

// Closed reports whether the stream end tag has been read.
func (s *Scanner) Closed() bool {
	return s.closed
}

// Offset returns the number of input bytes delivered as tokens so far.
func (s *Scanner) Offset() int64 {
	if s.buf == nil {
		return s.offset
	}
	return s.offset + int64(s.buf.Position())
}

// Err returns the error, if any, that was encountered during scanning.
// It returns nil if no error occurred, at EOF, or after the stream closed.
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) start() error {
	s.started = true
	if err := s.opts.Validate(); err != nil {
		return err
	}
	dec, err := buffer.Lookup(s.opts.Encoding)
	if err != nil {
		return err
	}
	s.dec = dec

	if s.opts.ReadBufferSize == buffer.DefaultChunkSize {
		s.chunk = buffer.Get()
	} else {
		s.chunk = make([]byte, s.opts.ReadBufferSize)
	}
	s.buf = &buffer.Buffer{}
	s.buf.Reset(s.chunk, 0)

	s.parser = parser.NewParserWithOptions(&s.events, s.opts.parserOptions())
	s.tok = tokenizer.NewWithOptions(s.parser, s.opts.tokenizerOptions())
	s.events.tok = s.tok

	s.log.V(1).Info("scanner started", "encoding", s.opts.Encoding, "readBufferSize", s.opts.ReadBufferSize)
	return nil
}

// read moves the unconsumed tail to the front of the buffer and appends the
// next chunk from the reader behind it.
func (s *Scanner) read() error {
	s.offset += int64(s.buf.Position())
	s.buf.Compact()

	if len(s.buf.Free()) == 0 {
		size := s.buf.Cap() * 2
		if s.opts.MaxTokenSize > 0 && s.buf.Len() >= s.opts.MaxTokenSize {
			return &ParseError{
				Offset: s.offset,
				Err:    fmt.Errorf("%w: more than %d bytes", ErrTokenTooLarge, s.opts.MaxTokenSize),
			}
		}
		if s.opts.MaxTokenSize > 0 && size > s.opts.MaxTokenSize {
			size = s.opts.MaxTokenSize
		}
		s.buf.Grow(size)
		s.log.V(2).Info("read buffer grown", "size", size)
	}

	free := s.buf.Free()
	if len(free) > s.opts.ReadBufferSize {
		free = free[:s.opts.ReadBufferSize]
	}
	n, err := s.reader.Read(free)
	if fillErr := s.buf.Fill(n); fillErr != nil {
		return fillErr
	}
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil
	}
	return err
}

// checkEnd reports an error if the input ended in the middle of a stanza.
func (s *Scanner) checkEnd() error {
	pending := strings.TrimLeft(string(s.buf.Rest()), " \t\r\n")
	if pending == "" && s.parser.Depth() == 0 && s.tok.State() == tokenizer.StateStart {
		return nil
	}
	return s.parseError(io.ErrUnexpectedEOF)
}

func (s *Scanner) parseError(err error) error {
	return &ParseError{Offset: s.Offset(), Err: err}
}

func (s *Scanner) fail(err error) {
	s.err = err
	s.log.Error(err, "stream torn down", "offset", s.Offset())
	s.finish()
}

// finish releases the read buffer. The Scanner cannot be used afterwards.
func (s *Scanner) finish() {
	s.done = true
	if s.tok != nil {
		s.tok.Close()
	}
	if s.chunk != nil {
		buffer.Put(s.chunk)
		s.chunk = nil
	}
	if s.closed {
		s.log.V(1).Info("stream closed", "offset", s.Offset())
	}
}

// streamEvents queues parser events and stops the tokenizer at the stream
// end tag, so bytes after it are never lexed.
type streamEvents struct {
	parser.Queue
	tok *tokenizer.Tokenizer
}

func (e *streamEvents) StreamClose() error {
	if err := e.Queue.StreamClose(); err != nil {
		return err
	}
	e.tok.Close()
	return nil
}
