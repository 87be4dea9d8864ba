// Package effects provides the outstanding-effect correlation table and the
// capability binding layer that lets behavior code request host-side effects.
package effects

import (
	"errors"
	"fmt"

	"github.com/cellact/cella/deferred"
)

// DefaultTableCapacity is the number of correlation slots a cell allocates
// when no capacity is configured.
const DefaultTableCapacity = 4048

// ErrIndexOutOfRange is returned when a reply names a slot outside the
// table. Replies for out-of-range slots are malformed envelopes.
var ErrIndexOutOfRange = errors.New("effect slot index out of range")

// ErrEvicted rejects a deferred handle whose correlation slot was reused
// before the host replied.
var ErrEvicted = errors.New("effect timed out: correlation slot reused")

// Table is a fixed-capacity ring allocator mapping integer slot indices to
// deferred handles. Allocation wraps around rather than tracking recency:
// it trades possible premature eviction of very long-lived in-flight
// effects for O(1) allocation and no dynamic growth.
//
// A Table is owned by a single cell and accessed only from its execution
// loop.
type Table struct {
	slots []*deferred.Deferred
	next  int
}

// NewTable returns a table with the given number of slots.
// A non-positive capacity selects DefaultTableCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultTableCapacity
	}
	return &Table{slots: make([]*deferred.Deferred, capacity)}
}

// Add installs d in the next slot and advances the cursor, wrapping at
// capacity. It returns the slot index and the previous occupant, if any.
// Callers must reject the previous occupant if it has not settled.
func (t *Table) Add(d *deferred.Deferred) (int, *deferred.Deferred) {
	index := t.next
	prev := t.slots[index]
	t.slots[index] = d
	t.next = (t.next + 1) % len(t.slots)
	return index, prev
}

// Get returns the occupant of the given slot, or nil if the slot is free.
func (t *Table) Get(index int) (*deferred.Deferred, error) {
	if index < 0 || index >= len(t.slots) {
		return nil, fmt.Errorf("%w: %d (capacity %d)", ErrIndexOutOfRange, index, len(t.slots))
	}
	return t.slots[index], nil
}

// Set stores d in the given slot, replacing any occupant.
func (t *Table) Set(index int, d *deferred.Deferred) error {
	if index < 0 || index >= len(t.slots) {
		return fmt.Errorf("%w: %d (capacity %d)", ErrIndexOutOfRange, index, len(t.slots))
	}
	t.slots[index] = d
	return nil
}

// Clear frees the given slot and returns its former occupant, if any.
func (t *Table) Clear(index int) (*deferred.Deferred, error) {
	if index < 0 || index >= len(t.slots) {
		return nil, fmt.Errorf("%w: %d (capacity %d)", ErrIndexOutOfRange, index, len(t.slots))
	}
	prev := t.slots[index]
	t.slots[index] = nil
	return prev, nil
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return len(t.slots)
}
