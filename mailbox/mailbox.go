// Package mailbox provides the unbounded FIFO queue of pending envelopes
// awaiting delivery to a cell's behavior.
package mailbox

import "errors"

// ErrEmpty is returned when dequeueing or peeking an empty mailbox.
var ErrEmpty = errors.New("mailbox is empty")

// defaultCapacity is the initial ring size when none is given.
const defaultCapacity = 16

// Mailbox is an unbounded FIFO queue backed by a growable ring buffer.
// Enqueue is amortized O(1) and Dequeue is O(1). There is no capacity
// bound; backpressure, if any, is the host's responsibility.
//
// A Mailbox is not safe for concurrent use. The execution loop that owns it
// serializes all access.
type Mailbox[T any] struct {
	buf   []T
	head  int
	count int
}

// New returns an empty mailbox with the given initial capacity.
// A non-positive capacity selects a small default.
func New[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Mailbox[T]{buf: make([]T, capacity)}
}

// Enqueue appends v at the tail of the queue.
func (m *Mailbox[T]) Enqueue(v T) {
	if m.count == len(m.buf) {
		m.grow()
	}
	m.buf[(m.head+m.count)%len(m.buf)] = v
	m.count++
}

// Dequeue removes and returns the oldest entry.
// It returns ErrEmpty if the mailbox is empty.
func (m *Mailbox[T]) Dequeue() (T, error) {
	var zero T
	if m.count == 0 {
		return zero, ErrEmpty
	}
	v := m.buf[m.head]
	m.buf[m.head] = zero
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return v, nil
}

// Peek returns the oldest entry without removing it.
// It returns ErrEmpty if the mailbox is empty.
func (m *Mailbox[T]) Peek() (T, error) {
	var zero T
	if m.count == 0 {
		return zero, ErrEmpty
	}
	return m.buf[m.head], nil
}

// IsEmpty reports whether the mailbox holds no entries.
func (m *Mailbox[T]) IsEmpty() bool {
	return m.count == 0
}

// Len returns the number of queued entries.
func (m *Mailbox[T]) Len() int {
	return m.count
}

// grow doubles the ring, unwrapping entries into the new buffer.
func (m *Mailbox[T]) grow() {
	next := make([]T, len(m.buf)*2)
	for i := 0; i < m.count; i++ {
		next[i] = m.buf[(m.head+i)%len(m.buf)]
	}
	m.buf = next
	m.head = 0
}
