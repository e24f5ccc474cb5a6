package parser

import "github.com/jackal-xmpp/stravaganza/v2"

// EventKind identifies a stream event.
type EventKind int

const (
	// EventStreamOpen is a stream header.
	EventStreamOpen EventKind = iota
	// EventStanza is a completed top-level element.
	EventStanza
	// EventStreamClose is the stream end tag.
	EventStreamClose
)

// Event is a single stream event buffered by a Queue.
type Event struct {
	Kind    EventKind
	Header  StreamHeader
	Element stravaganza.Element
}

// Queue is a Handler that buffers events until they are popped.
type Queue struct {
	events []Event
}

// StreamOpen queues the stream header.
func (q *Queue) StreamOpen(hdr StreamHeader) error {
	q.events = append(q.events, Event{Kind: EventStreamOpen, Header: hdr})
	return nil
}

// Stanza queues a completed stanza.
func (q *Queue) Stanza(elem stravaganza.Element) error {
	q.events = append(q.events, Event{Kind: EventStanza, Element: elem})
	return nil
}

// StreamClose queues the stream end.
func (q *Queue) StreamClose() error {
	q.events = append(q.events, Event{Kind: EventStreamClose})
	return nil
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events[0] = Event{}
	q.events = q.events[1:]
	return ev, true
}
