package xmpp

import (
	"fmt"

	"github.com/jackal-xmpp/stravaganza/v2"
	"mellium.im/xmpp/jid"
)

// Stanza element names.
const (
	MessageName  = "message"
	PresenceName = "presence"
	IQName       = "iq"
)

// IsStanza reports whether el is one of the three XMPP stanza kinds.
// Other top-level elements (stream features, SASL and TLS negotiation,
// stream errors) are stream-level elements.
func IsStanza(el stravaganza.Element) bool {
	if el == nil {
		return false
	}
	switch el.Name() {
	case MessageName, PresenceName, IQName:
		return true
	}
	return false
}

// Addressing parses the to and from attributes of el as JIDs. An absent
// attribute yields the zero JID.
func Addressing(el stravaganza.Element) (to, from jid.JID, err error) {
	if to, err = parseAddress(el, "to"); err != nil {
		return jid.JID{}, jid.JID{}, err
	}
	if from, err = parseAddress(el, "from"); err != nil {
		return jid.JID{}, jid.JID{}, err
	}
	return to, from, nil
}

func parseAddress(el stravaganza.Element, label string) (jid.JID, error) {
	v := el.Attribute(label)
	if v == "" {
		return jid.JID{}, nil
	}
	j, err := jid.Parse(v)
	if err != nil {
		return jid.JID{}, fmt.Errorf("xmpp: invalid %s address %q: %w", label, v, err)
	}
	return j, nil
}
