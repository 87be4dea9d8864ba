// Package deferred provides a single-resolution result holder used to track
// one in-flight asynchronous effect.
package deferred

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAwaitTimeout is returned by AwaitTimeout when the handle does not
// settle within the given duration.
var ErrAwaitTimeout = errors.New("await timed out before the deferred settled")

// Deferred settles exactly once, via Resolve or Reject. Settling an already
// settled handle is a no-op: it does not panic and does not alter the
// settled result. All methods are safe for concurrent use.
type Deferred struct {
	mu        sync.Mutex
	done      bool
	value     any
	err       error
	settled   chan struct{}
	callbacks []func(value any, err error)
}

// New returns a new unsettled handle.
func New() *Deferred {
	return &Deferred{settled: make(chan struct{})}
}

// Resolve settles the handle successfully with value.
func (d *Deferred) Resolve(value any) {
	d.settle(value, nil)
}

// Reject settles the handle with an error.
func (d *Deferred) Reject(err error) {
	d.settle(nil, err)
}

func (d *Deferred) settle(value any, err error) {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return
	}
	d.done = true
	d.value = value
	d.err = err
	cbs := d.callbacks
	d.callbacks = nil
	close(d.settled)
	d.mu.Unlock()

	for _, cb := range cbs {
		cb(value, err)
	}
}

// Done reports whether the handle has settled, without blocking.
func (d *Deferred) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// OnSettle registers a callback invoked once when the handle settles.
// If the handle is already settled, the callback runs immediately in the
// caller's goroutine; otherwise it runs in the goroutine that settles it.
func (d *Deferred) OnSettle(cb func(value any, err error)) {
	d.mu.Lock()
	if !d.done {
		d.callbacks = append(d.callbacks, cb)
		d.mu.Unlock()
		return
	}
	value, err := d.value, d.err
	d.mu.Unlock()
	cb(value, err)
}

// Await blocks until the handle settles or the context is canceled.
func (d *Deferred) Await(ctx context.Context) (any, error) {
	select {
	case <-d.settled:
		return d.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitTimeout blocks until the handle settles or the timeout elapses.
// A non-positive timeout waits indefinitely.
func (d *Deferred) AwaitTimeout(timeout time.Duration) (any, error) {
	if timeout <= 0 {
		<-d.settled
		return d.result()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.settled:
		return d.result()
	case <-timer.C:
		return nil, ErrAwaitTimeout
	}
}

func (d *Deferred) result() (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.err
}
