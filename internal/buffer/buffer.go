// Package buffer provides the byte cursor the XML tokenizer reads from.
//
// A Buffer is a view over a caller-owned byte slice with a read position and a
// limit. The tokenizer consumes it one byte at a time, decodes completed spans
// with DecodeRange, and rewinds the position to the last token boundary before
// returning, so unconsumed bytes stay in the window for the next read.
//
// The storage is borrowed: a Buffer never copies the slice it was given and
// nothing downstream may keep a reference to it after the call that received it.
package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfData is returned by NextByte when the window is exhausted.
	// It signals suspension, not failure.
	ErrOutOfData = errors.New("buffer: out of data")

	// ErrOutOfRange is returned when a position or limit falls outside the storage.
	ErrOutOfRange = errors.New("buffer: position out of range")
)

// Buffer is a read cursor over borrowed bytes.
//
// Invariant: 0 <= pos <= limit <= len(data).
type Buffer struct {
	data  []byte
	pos   int
	limit int
}

// New creates a Buffer over data with the limit set to len(data).
func New(data []byte) *Buffer {
	b := &Buffer{}
	b.Reset(data, len(data))
	return b
}

// Reset points the Buffer at new storage whose first n bytes are valid and
// rewinds it. n is clamped to [0, len(data)].
func (b *Buffer) Reset(data []byte, n int) {
	n = max(0, min(n, len(data)))
	b.data = data
	b.pos = 0
	b.limit = n
}

// Remaining reports whether unread bytes are left in the window.
func (b *Buffer) Remaining() bool {
	return b.pos < b.limit
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return b.limit - b.pos
}

// Cap returns the size of the underlying storage.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// NextByte returns the byte at the read position and advances past it.
func (b *Buffer) NextByte() (byte, error) {
	if b.pos >= b.limit {
		return 0, ErrOutOfData
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// Position returns the read position.
func (b *Buffer) Position() int {
	return b.pos
}

// SetPosition moves the read position. p must lie within [0, limit].
func (b *Buffer) SetPosition(p int) error {
	if p < 0 || p > b.limit {
		return fmt.Errorf("%w: position %d, limit %d", ErrOutOfRange, p, b.limit)
	}
	b.pos = p
	return nil
}

// Limit returns the end of valid data.
func (b *Buffer) Limit() int {
	return b.limit
}

// SetLimit moves the end of valid data. l must lie within [pos, len(storage)].
func (b *Buffer) SetLimit(l int) error {
	if l < b.pos || l > len(b.data) {
		return fmt.Errorf("%w: limit %d, position %d, capacity %d", ErrOutOfRange, l, b.pos, len(b.data))
	}
	b.limit = l
	return nil
}

// Rest returns the unread window [pos, limit). The slice aliases the storage.
func (b *Buffer) Rest() []byte {
	return b.data[b.pos:b.limit]
}

// Skip advances the read position by n bytes, clamped to the limit.
func (b *Buffer) Skip(n int) {
	if n <= 0 {
		return
	}
	b.pos += n
	if b.pos > b.limit {
		b.pos = b.limit
	}
}

// DecodeRange decodes the bytes in [start, end) with dec.
//
// The view is narrowed to the range for the duration of the call and the
// previous position and limit are restored afterwards, whether or not
// decoding succeeds.
func (b *Buffer) DecodeRange(start, end int, dec Decoder) (string, error) {
	if start < 0 || end < start || end > b.limit {
		return "", fmt.Errorf("%w: range [%d,%d), limit %d", ErrOutOfRange, start, end, b.limit)
	}

	oldPos, oldLimit := b.pos, b.limit
	b.pos, b.limit = start, end
	defer func() {
		b.pos, b.limit = oldPos, oldLimit
	}()

	return dec.Decode(b.Rest())
}

// Compact moves the unread window to the front of the storage and returns its
// length. Afterwards the position is 0 and the limit is the returned length.
//
// Network loops call Compact between reads so that bytes the tokenizer left
// behind are re-delivered ahead of the next chunk.
func (b *Buffer) Compact() int {
	n := copy(b.data, b.data[b.pos:b.limit])
	b.pos = 0
	b.limit = n
	return n
}

// Grow replaces the storage with a larger slice holding the unread window at
// the front. It returns the new storage so the caller can keep ownership of it.
func (b *Buffer) Grow(size int) []byte {
	n := b.Len()
	if size < n {
		size = n
	}
	grown := make([]byte, size)
	copy(grown, b.data[b.pos:b.limit])
	b.data = grown
	b.pos = 0
	b.limit = n
	return grown
}

// Free returns the writable space after the limit.
func (b *Buffer) Free() []byte {
	return b.data[b.limit:]
}

// Fill extends the limit by n bytes written into Free.
func (b *Buffer) Fill(n int) error {
	return b.SetLimit(b.limit + n)
}
