package xmpp

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	stanzas, err := Parse(session)
	require.NoError(t, err)
	require.Len(t, stanzas, 3)

	msg := stanzas[0]
	assert.Equal(t, "message", msg.Name())
	assert.Equal(t, "romeo@example.net", msg.Attribute("to"))
	assert.Equal(t, "Art thou not Romeo, and a Montague?", msg.Child("body").Text())

	iq := stanzas[2]
	require.NotNil(t, iq.Child("query"))
	assert.Equal(t, "jabber:iq:roster", iq.Child("query").Attribute("xmlns"))
}

func TestParse_BareStanzas(t *testing.T) {
	stanzas, err := Parse("<presence/>\n<presence type='unavailable'/>\n")
	require.NoError(t, err)
	require.Len(t, stanzas, 2)
	assert.Equal(t, "unavailable", stanzas[1].Attribute("type"))
}

func TestParse_Empty(t *testing.T) {
	stanzas, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, stanzas)
}

func TestParseReader(t *testing.T) {
	stanzas, err := ParseReader(iotest.OneByteReader(strings.NewReader(session)))
	require.NoError(t, err)
	require.Len(t, stanzas, 3)
	assert.Equal(t, "iq", stanzas[2].Name())
}

func TestParseWithOptions(t *testing.T) {
	opts := DefaultReaderOptions()
	opts.MaxDepth = 1

	_, err := ParseWithOptions("<message><body>hi</body></message>", opts)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestParseWithOptions_OmitEmptyValues(t *testing.T) {
	opts := DefaultReaderOptions()
	opts.OmitEmptyValues = true

	stanzas, err := ParseWithOptions(`<presence type='' to='a@b'/><presence to='c@d' type=''/>`, opts)
	require.NoError(t, err)
	require.Len(t, stanzas, 2)
	for _, el := range stanzas {
		assert.Equal(t, "", el.Attribute("type"))
		assert.Len(t, el.AllAttributes(), 2)
	}
	assert.Equal(t, "a@b", stanzas[0].Attribute("to"))
	assert.Equal(t, "c@d", stanzas[1].Attribute("to"))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "self-closing tag",
			input: "<a b='1'/>",
			want: []Token{
				{Kind: TokenLAngle, Value: "<"},
				{Kind: TokenName, Value: "a"},
				{Kind: TokenName, Value: "b"},
				{Kind: TokenEquals, Value: "="},
				{Kind: TokenAttrValue, Value: "1"},
				{Kind: TokenSlash, Value: "/"},
				{Kind: TokenRAngle, Value: ">"},
			},
		},
		{
			name:  "text and comment",
			input: "<!-- hi --><b>x</b>\n",
			want: []Token{
				{Kind: TokenLAngle, Value: "<"},
				{Kind: TokenCommentOpen, Value: "!--"},
				{Kind: TokenComment, Value: "hi"},
				{Kind: TokenRAngle, Value: ">"},
				{Kind: TokenLAngle, Value: "<"},
				{Kind: TokenName, Value: "b"},
				{Kind: TokenRAngle, Value: ">"},
				{Kind: TokenText, Value: "x"},
				{Kind: TokenLAngle, Value: "<"},
				{Kind: TokenSlash, Value: "/"},
				{Kind: TokenName, Value: "b"},
				{Kind: TokenRAngle, Value: ">"},
			},
		},
		{
			name:  "empty",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	_, err := Tokenize("<!x>")
	assert.ErrorIs(t, err, ErrMalformedMarkup)

	tokens, err := Tokenize("<a b='1")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Len(t, tokens, 4)

	opts := DefaultReaderOptions()
	opts.StrictComments = true
	_, err = TokenizeWithOptions("<!-- x ->", opts)
	assert.ErrorIs(t, err, ErrMalformedMarkup)

	opts = DefaultReaderOptions()
	opts.Encoding = "x-no-such-charset"
	_, err = TokenizeWithOptions("<a/>", opts)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"session", session, nil},
		{"bare stanza", "<presence/>", nil},
		{"mismatched", "<message></presence>", ErrUnexpectedEnd},
		{"bang", "<!DOCTYPE stream>", ErrMalformedMarkup},
		{"entity", "<message><body>&nbsp;</body></message>", ErrUnknownEntity},
		{"restart", "<stream:stream><stream:stream>", ErrUnexpectedRestart},
		{"truncated", "<message>", io.ErrUnexpectedEOF},
		{"invalid utf-8", "<message><body>\xff</body></message>", ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateReader(t *testing.T) {
	assert.NoError(t, ValidateReader(iotest.HalfReader(strings.NewReader(session))))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "XMPP", Format())
}
