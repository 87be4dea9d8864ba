// Package celltest provides test doubles for the host side of the cell
// envelope protocol.
package celltest

import (
	"testing"
	"time"

	"github.com/cellact/cella/protocol"
)

// HostProbe implements cell.Host for tests: it records every envelope the
// cell delivers and offers helpers to wait for and assert on them.
type HostProbe struct {
	t  testing.TB
	ch chan *protocol.Envelope
}

// NewHostProbe creates a probe. A non-positive buffer selects 1024.
func NewHostProbe(t testing.TB, buffer int) *HostProbe {
	if buffer <= 0 {
		buffer = 1024
	}
	return &HostProbe{t: t, ch: make(chan *protocol.Envelope, buffer)}
}

// Deliver records an outbound envelope. It implements cell.Host.
func (p *HostProbe) Deliver(env *protocol.Envelope) error {
	p.ch <- env
	return nil
}

// Chan returns the envelope channel for direct use in select statements.
func (p *HostProbe) Chan() <-chan *protocol.Envelope { return p.ch }

// Expect waits for the next envelope. The test fails after the timeout;
// a non-positive timeout selects one second.
func (p *HostProbe) Expect(timeout time.Duration) *protocol.Envelope {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	select {
	case env := <-p.ch:
		return env
	case <-time.After(timeout):
		p.t.Fatalf("timeout waiting for envelope")
		return nil
	}
}

// ExpectAction waits for the next envelope and fails the test unless its
// action matches.
func (p *HostProbe) ExpectAction(action string, timeout time.Duration) *protocol.Envelope {
	p.t.Helper()
	env := p.Expect(timeout)
	if env != nil && env.Action != action {
		p.t.Fatalf("expected %q envelope, got %q", action, env.Action)
	}
	return env
}

// ExpectNoEnvelope fails the test if any envelope arrives within the
// timeout. A non-positive timeout selects 50 milliseconds.
func (p *HostProbe) ExpectNoEnvelope(timeout time.Duration) {
	p.t.Helper()
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case env := <-p.ch:
		p.t.Fatalf("unexpected envelope: %s %s", env.Action, string(env.Payload))
	case <-time.After(timeout):
	}
}
