package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapestone/shape-xmpp/internal/buffer"
	"github.com/shapestone/shape-xmpp/internal/tokenizer"
)

// run tokenizes input in one Feed call and returns the queued events.
func run(input string, opts Options) (*Queue, error) {
	q := &Queue{}
	tok := tokenizer.New(NewParserWithOptions(q, opts))
	err := tok.Feed(buffer.New([]byte(input)), buffer.UTF8)
	return q, err
}

// runBytes feeds input one byte at a time, carrying unconsumed bytes over.
func runBytes(input string, opts Options) (*Queue, error) {
	q := &Queue{}
	tok := tokenizer.New(NewParserWithOptions(q, opts))

	var pending []byte
	for i := 0; i < len(input); i++ {
		buf := buffer.New(append(pending, input[i]))
		if err := tok.Feed(buf, buffer.UTF8); err != nil {
			return q, err
		}
		pending = append([]byte{}, buf.Rest()...)
	}
	return q, nil
}

func popStanza(t *testing.T, q *Queue) stravaganza.Element {
	t.Helper()
	ev, ok := q.Pop()
	require.True(t, ok, "expected an event")
	require.Equal(t, EventStanza, ev.Kind)
	return ev.Element
}

const session = `<?xml version='1.0'?>` +
	`<stream:stream to='example.com' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>` +
	"\n  " +
	`<message to='juliet@example.com' type='chat'><body>Hi &amp; bye</body></message>` +
	"\n" +
	`<presence/>` +
	`</stream:stream>`

func TestParse_Stream(t *testing.T) {
	for name, feed := range map[string]func(string, Options) (*Queue, error){
		"single feed":    run,
		"byte at a time": runBytes,
	} {
		t.Run(name, func(t *testing.T) {
			q, err := feed(session, DefaultOptions())
			require.NoError(t, err)
			require.Equal(t, 4, q.Len())

			ev, _ := q.Pop()
			require.Equal(t, EventStreamOpen, ev.Kind)
			assert.Equal(t, "stream:stream", ev.Header.Name)
			assert.Equal(t, "example.com", ev.Header.Attribute("to"))
			assert.Equal(t, "1.0", ev.Header.Attribute("version"))
			assert.Equal(t, "", ev.Header.Attribute("from"))

			msg := popStanza(t, q)
			assert.Equal(t, "message", msg.Name())
			assert.Equal(t, "chat", msg.Attribute("type"))
			require.NotNil(t, msg.Child("body"))
			assert.Equal(t, "Hi & bye", msg.Child("body").Text())

			presence := popStanza(t, q)
			assert.Equal(t, "presence", presence.Name())

			ev, _ = q.Pop()
			assert.Equal(t, EventStreamClose, ev.Kind)

			_, ok := q.Pop()
			assert.False(t, ok)
		})
	}
}

func TestParse_Stanzas(t *testing.T) {
	t.Run("nested children", func(t *testing.T) {
		q, err := run(`<iq type='result' id='r1'><query xmlns='jabber:iq:roster'><item jid='a@b'/><item jid='c@d'/></query></iq>`, DefaultOptions())
		require.NoError(t, err)

		iq := popStanza(t, q)
		query := iq.Child("query")
		require.NotNil(t, query)
		assert.Equal(t, "jabber:iq:roster", query.Attribute("xmlns"))
		items := query.Children("item")
		require.Len(t, items, 2)
		assert.Equal(t, "c@d", items[1].Attribute("jid"))
	})

	t.Run("mixed text is concatenated", func(t *testing.T) {
		q, err := run("<a>x<b/>y</a>", DefaultOptions())
		require.NoError(t, err)
		a := popStanza(t, q)
		assert.Equal(t, "xy", a.Text())
		assert.Len(t, a.AllChildren(), 1)
	})

	t.Run("comments are skipped", func(t *testing.T) {
		q, err := run("<!-- top --><a><!-- note --><b/></a>", DefaultOptions())
		require.NoError(t, err)
		a := popStanza(t, q)
		assert.Len(t, a.AllChildren(), 1)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("empty attribute value", func(t *testing.T) {
		q, err := run(`<a b="" c='1'/>`, DefaultOptions())
		require.NoError(t, err)
		a := popStanza(t, q)
		assert.Len(t, a.AllAttributes(), 2)
		assert.Equal(t, "", a.Attribute("b"))
		assert.Equal(t, "1", a.Attribute("c"))
	})

	t.Run("entities in attribute values", func(t *testing.T) {
		q, err := run(`<a title='&lt;hi&gt; &#x263A;'/>`, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "<hi> ☺", popStanza(t, q).Attribute("title"))
	})
}

func TestParse_OmittedEmptyValue(t *testing.T) {
	q := &Queue{}
	opts := tokenizer.DefaultOptions()
	opts.OmitEmptyValues = true
	tok := tokenizer.NewWithOptions(NewParser(q), opts)

	require.NoError(t, tok.Feed(buffer.New([]byte(`<a b=""/><presence type='' to='a@b'/><c d=''>`)), buffer.UTF8))
	a := popStanza(t, q)
	assert.Len(t, a.AllAttributes(), 1)
	assert.Equal(t, "", a.Attribute("b"))

	presence := popStanza(t, q)
	assert.Equal(t, []stravaganza.Attribute{
		{Label: "type", Value: ""},
		{Label: "to", Value: "a@b"},
	}, presence.AllAttributes())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{"mismatched end tag", "<a></b>", DefaultOptions(), ErrUnexpectedEnd},
		{"stray end tag", "</a>", DefaultOptions(), ErrUnexpectedEnd},
		{"text at stream level", "hello<a/>", DefaultOptions(), ErrUnexpectedText},
		{"attribute without value", "<a b>", DefaultOptions(), ErrUnexpectedToken},
		{"unquoted value", "<a b=c>", DefaultOptions(), ErrUnexpectedToken},
		{"end tag without name", "</>", DefaultOptions(), ErrUnexpectedToken},
		{"garbage after end name", "<a></a b>", DefaultOptions(), ErrUnexpectedToken},
		{"slash in the middle of a tag", "<a / b>", DefaultOptions(), ErrUnexpectedToken},
		{"unknown entity", "<a>&nbsp;</a>", DefaultOptions(), ErrUnknownEntity},
		{"unterminated reference", "<a>&amp</a>", DefaultOptions(), ErrUnknownEntity},
		{"stream restart", "<stream:stream><stream:stream>", DefaultOptions(), ErrUnexpectedRestart},
		{"too large", "<a>0123456789</a>", Options{MaxStanzaSize: 8}, ErrTooLargeStanza},
		{"too deep", "<a><b><c/></b></a>", Options{MaxDepth: 2}, ErrTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(tt.input, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_SizeResetsPerStanza(t *testing.T) {
	q, err := run("<a>12</a><a>34</a><a>56</a>", Options{MaxStanzaSize: 12})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Len())
}

func TestParse_SizeIgnoresStreamLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  int
	}{
		{"long header", session, 80, 4},
		{"keepalives", "<stream:stream>" + strings.Repeat(" ", 40) + "<!-- ping -->\n\n<a/>", 8, 2},
		{"declaration", "<?xml version='1.0' encoding='UTF-8'?><a/>", 4, 1},
	}

	for _, tt := range tests {
		for name, feed := range map[string]func(string, Options) (*Queue, error){
			"single feed":    run,
			"byte at a time": runBytes,
		} {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				q, err := feed(tt.input, Options{MaxStanzaSize: tt.limit})
				require.NoError(t, err)
				assert.Equal(t, tt.want, q.Len())
			})
		}
	}
}

func TestParse_SizeCountsWholeStanza(t *testing.T) {
	// "<presence/>" is 11 bytes: the limit bites on the final ">"
	_, err := run("<stream:stream><presence/>", Options{MaxStanzaSize: 10})
	assert.ErrorIs(t, err, ErrTooLargeStanza)

	q, err := run("<stream:stream><presence/>", Options{MaxStanzaSize: 11})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
}

type failingHandler struct {
	Queue
	err error
}

func (h *failingHandler) Stanza(stravaganza.Element) error {
	return h.err
}

func TestParse_HandlerError(t *testing.T) {
	h := &failingHandler{err: errors.New("route failed")}
	tok := tokenizer.New(NewParser(h))

	err := tok.Feed(buffer.New([]byte("<stream:stream><a/><b/>")), buffer.UTF8)
	assert.Same(t, h.err, err)
	assert.True(t, tok.Closed())
	assert.Equal(t, 1, h.Len()) // only the stream header
}

func TestParse_State(t *testing.T) {
	q := &Queue{}
	p := NewParser(q)
	tok := tokenizer.New(p)

	require.NoError(t, tok.Feed(buffer.New([]byte("<stream:stream><a><b>")), buffer.UTF8))
	assert.True(t, p.InStream())
	assert.Equal(t, 2, p.Depth())

	require.NoError(t, tok.Feed(buffer.New([]byte("</b></a></stream:stream>")), buffer.UTF8))
	assert.False(t, p.InStream())
	assert.Equal(t, 0, p.Depth())
}

func TestParse_Logger(t *testing.T) {
	opts := DefaultOptions()
	opts.Logger = testr.NewWithOptions(t, testr.Options{Verbosity: 2})

	q, err := run(session, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, q.Len())

	// a zero Logger falls back to discarding
	_, err = run(session, Options{})
	require.NoError(t, err)
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"&lt;&gt;&amp;&apos;&quot;", `<>&'"`, false},
		{"a &#65;&#x42; c", "a AB c", false},
		{"&#0;", "", true},
		{"&#xD800;", "", true},
		{"&#xZZ;", "", true},
		{"&copy;", "", true},
		{"tail &", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := unescape(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEntity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
