// Package cell implements the execution engine that runs inside a single
// isolated context hosting one actor: the mailbox loop, behavior
// continuation, identity bookkeeping, effect correlation, and fault
// containment. The enclosing host creates cells, routes envelopes between
// them, and implements the actual effect handlers.
package cell

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cellact/cella/effects"
	"github.com/cellact/cella/mailbox"
	"github.com/cellact/cella/protocol"
)

var (
	// ErrCellClosed is returned by Receive after the cell has terminated.
	ErrCellClosed = errors.New("cell is closed")

	// ErrProtocolViolation is the fault cause for malformed envelopes and
	// unsupported behavior results.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrNotInitialized is the fault cause when a tell arrives before the
	// initialize envelope.
	ErrNotInitialized = errors.New("cell has no behavior installed")

	// ErrAlreadyInitialized is the fault cause for a second initialize
	// envelope.
	ErrAlreadyInitialized = errors.New("cell is already initialized")
)

// State describes the execution loop's current state.
type State int32

const (
	// StateIdle means no behavior invocation is in progress.
	StateIdle State = iota

	// StateBusy means a behavior invocation is in progress or suspended.
	StateBusy

	// StateStopped is the graceful terminal state.
	StateStopped

	// StateFaulted is the error-path terminal state, reached only via the
	// fault reporter.
	StateFaulted
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Host is the cell's outbound channel to its enclosing host. Deliver is
// called from the cell's own goroutine and must not call back into the cell
// synchronously.
type Host interface {
	// Deliver hands an envelope to the host.
	Deliver(env *protocol.Envelope) error
}

// HostFunc adapts a function to the Host interface.
type HostFunc func(env *protocol.Envelope) error

// Deliver implements Host.
func (f HostFunc) Deliver(env *protocol.Envelope) error { return f(env) }

// Options configures a cell.
type Options struct {
	// Logger is the structured logger; slog.Default() when nil.
	Logger *slog.Logger

	// Factories resolves the behavior factory named by the initialize
	// envelope. Required.
	Factories *FactoryRegistry

	// EffectTableCapacity is the number of outstanding-effect slots.
	// Non-positive selects effects.DefaultTableCapacity.
	EffectTableCapacity int

	// InboxSize is the buffer of the host-to-cell envelope channel.
	// Non-positive selects a default.
	InboxSize int

	// MailboxCapacity is the initial capacity of the FIFO mailbox.
	MailboxCapacity int

	// Codec decodes raw envelopes in ReceiveBytes; protocol.JSONCodec when
	// nil.
	Codec protocol.Codec
}

const defaultInboxSize = 256

// resumeEvent carries the settled result of a suspended invocation back
// into the execution loop.
type resumeEvent struct {
	value any
	err   error
}

// suspension is the awaiting half of a behavior invocation that returned
// Suspend. At most one suspension exists at a time.
type suspension struct {
	resume ResumeFunc
}

// Stats is a point-in-time snapshot of cell counters.
type Stats struct {
	// State is the loop state at the time of the snapshot.
	State State

	// MessagesHandled counts tell envelopes delivered to behaviors.
	MessagesHandled uint64
}

// Cell is one actor's execution context. All of its state is owned by the
// single goroutine started by Start; hosts interact with it only through
// Receive and the Host callback.
type Cell struct {
	host      Host
	logger    *slog.Logger
	factories *FactoryRegistry
	codec     protocol.Codec

	inbox    chan *protocol.Envelope
	resumeCh chan resumeEvent
	queue    *mailbox.Mailbox[*protocol.Envelope]
	table    *effects.Table
	registry *effects.Registry
	identity Identity
	behavior Behavior
	susp     *suspension

	state   atomic.Int32
	handled atomic.Uint64

	startOnce sync.Once
	done      chan struct{}
}

// New creates a cell that reports to host. The cell does not process
// envelopes until Start is called.
func New(host Host, opts Options) (*Cell, error) {
	if host == nil {
		return nil, fmt.Errorf("cell: nil host")
	}
	if opts.Factories == nil {
		return nil, fmt.Errorf("cell: no factory registry")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codec := opts.Codec
	if codec == nil {
		codec = protocol.JSONCodec{}
	}
	inboxSize := opts.InboxSize
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}

	return &Cell{
		host:      host,
		logger:    logger,
		factories: opts.Factories,
		codec:     codec,
		inbox:     make(chan *protocol.Envelope, inboxSize),
		resumeCh:  make(chan resumeEvent, 1),
		queue:     mailbox.New[*protocol.Envelope](opts.MailboxCapacity),
		table:     effects.NewTable(opts.EffectTableCapacity),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the execution loop. Subsequent calls are no-ops.
func (c *Cell) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Receive hands a host envelope to the cell. It returns ErrCellClosed once
// the cell has terminated; envelopes accepted before termination but never
// processed are dropped.
func (c *Cell) Receive(env *protocol.Envelope) error {
	if env == nil {
		return fmt.Errorf("cell: nil envelope")
	}
	// Checked first: with buffer space free a two-way select could pick the
	// send even after termination.
	select {
	case <-c.done:
		return ErrCellClosed
	default:
	}
	select {
	case <-c.done:
		return ErrCellClosed
	case c.inbox <- env:
		return nil
	}
}

// ReceiveBytes decodes a serialized envelope and hands it to the cell.
func (c *Cell) ReceiveBytes(data []byte) error {
	env, err := c.codec.Decode(data)
	if err != nil {
		return err
	}
	return c.Receive(env)
}

// Done returns a channel closed when the cell terminates.
func (c *Cell) Done() <-chan struct{} { return c.done }

// State returns the loop's current state.
func (c *Cell) State() State { return State(c.state.Load()) }

// Stats returns a snapshot of the cell's counters.
func (c *Cell) Stats() Stats {
	return Stats{
		State:           c.State(),
		MessagesHandled: c.handled.Load(),
	}
}

func (c *Cell) setState(s State) { c.state.Store(int32(s)) }

// run is the execution loop. It processes host envelopes and suspension
// resumptions until the cell reaches a terminal state.
func (c *Cell) run() {
	defer close(c.done)
	for {
		select {
		case env := <-c.inbox:
			c.handle(env)
		case ev := <-c.resumeCh:
			c.resumeSuspended(ev)
		}
		if s := c.State(); s == StateStopped || s == StateFaulted {
			return
		}
	}
}

// handle dispatches one host envelope. Protocol envelopes are handled on
// receipt, even while a behavior invocation is suspended; only tell
// envelopes are subject to mailbox ordering.
func (c *Cell) handle(env *protocol.Envelope) {
	switch env.Action {
	case protocol.ActionTell:
		c.handleTell(env)
	case protocol.ActionInitialize:
		c.handleInitialize(env)
	case protocol.ActionChildSpawned:
		c.handleChildSpawned(env)
	case protocol.ActionChildStopped:
		c.handleChildStopped(env)
	case protocol.ActionEffectApplied:
		c.handleEffectReply(env, true)
	case protocol.ActionEffectFailed:
		c.handleEffectReply(env, false)
	case protocol.ActionStop:
		c.handleStop()
	default:
		c.fault(fmt.Errorf("%w: unknown action %q", ErrProtocolViolation, env.Action))
	}
}

func (c *Cell) handleInitialize(env *protocol.Envelope) {
	if c.behavior != nil {
		c.fault(ErrAlreadyInitialized)
		return
	}
	var payload protocol.InitializePayload
	if err := env.DecodePayload(&payload); err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}

	factory, ok := c.factories.Lookup(payload.Factory)
	if !ok {
		c.fault(fmt.Errorf("%w: %q", ErrFactoryNotFound, payload.Factory))
		return
	}
	behavior, err := factory()
	if err != nil {
		c.fault(fmt.Errorf("behavior factory %q failed: %w", payload.Factory, err))
		return
	}
	if behavior == nil {
		c.fault(fmt.Errorf("behavior factory %q returned no behavior", payload.Factory))
		return
	}

	c.identity = Identity{
		Name:     payload.Name,
		Path:     payload.Path,
		Parent:   payload.Parent,
		Children: make(map[string]string),
	}

	registry, err := effects.Bind(payload.Effects, c.table, c.send, func() string {
		return c.identity.Path
	})
	if err != nil {
		c.fault(err)
		return
	}

	c.behavior = behavior
	c.registry = registry
	c.logger.Debug("cell initialized",
		"name", payload.Name, "path", payload.Path, "effects", len(payload.Effects))
}

func (c *Cell) handleTell(env *protocol.Envelope) {
	if c.behavior == nil {
		c.fault(fmt.Errorf("%w: tell before initialize", ErrNotInitialized))
		return
	}
	if c.State() == StateBusy {
		c.queue.Enqueue(env)
		return
	}
	c.setState(StateBusy)
	c.invokeTell(env)
	c.pump()
}

// invokeTell applies the current behavior to one tell envelope, with the
// identity snapshot captured before the call and restored after it.
func (c *Cell) invokeTell(env *protocol.Envelope) {
	var payload protocol.TellPayload
	if err := env.DecodePayload(&payload); err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}
	c.handled.Add(1)

	snap := c.identity.Snapshot()
	view := c.identity.Snapshot()
	ctx := &Context{
		name:     view.Name,
		self:     view.Path,
		parent:   view.Parent,
		children: view.Children,
		sender:   payload.Sender,
		registry: c.registry,
		logger:   c.logger,
	}

	next, err := c.safeApply(c.behavior, ctx, payload.Message)
	c.identity.Restore(snap)
	if err != nil {
		c.fault(err)
		return
	}
	c.applyNext(next)
}

// safeApply invokes a behavior, converting panics into errors.
func (c *Cell) safeApply(b Behavior, ctx *Context, msg json.RawMessage) (next Next, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = Next{}, newPanicError(r)
		}
	}()
	return b(ctx, msg)
}

// safeResume runs a suspension's continuation, converting panics into
// errors.
func (c *Cell) safeResume(resume ResumeFunc, ev resumeEvent) (next Next, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = Next{}, newPanicError(r)
		}
	}()
	return resume(ev.value, ev.err)
}

// applyNext interprets the result of a behavior invocation.
func (c *Cell) applyNext(next Next) {
	switch next.kind {
	case nextContinue:
		if next.behavior == nil {
			c.fault(fmt.Errorf("%w: behavior returned a nil continuation", ErrProtocolViolation))
			return
		}
		c.behavior = next.behavior
	case nextSuspend:
		if next.awaited == nil || next.resume == nil {
			c.fault(fmt.Errorf("%w: behavior returned an incomplete suspension", ErrProtocolViolation))
			return
		}
		c.beginSuspension(next)
	case nextStop:
		c.stopGraceful()
	default:
		c.fault(fmt.Errorf("%w: behavior returned an invalid result", ErrProtocolViolation))
	}
}

// beginSuspension parks the in-progress invocation until the awaited handle
// settles. The cell stays busy; the settlement re-enters the loop through
// resumeCh.
func (c *Cell) beginSuspension(next Next) {
	c.susp = &suspension{resume: next.resume}
	next.awaited.OnSettle(func(value any, err error) {
		select {
		case c.resumeCh <- resumeEvent{value: value, err: err}:
		case <-c.done:
		}
	})
}

// resumeSuspended continues the suspended invocation with the settled
// result, then drains the mailbox.
func (c *Cell) resumeSuspended(ev resumeEvent) {
	if c.susp == nil {
		return
	}
	resume := c.susp.resume
	c.susp = nil

	snap := c.identity.Snapshot()
	next, err := c.safeResume(resume, ev)
	c.identity.Restore(snap)
	if err != nil {
		c.fault(err)
		return
	}
	c.applyNext(next)
	c.pump()
}

// pump delivers queued tell envelopes in arrival order until the mailbox is
// empty, the cell suspends again, or it reaches a terminal state.
func (c *Cell) pump() {
	for c.State() == StateBusy && c.susp == nil {
		if c.queue.IsEmpty() {
			c.setState(StateIdle)
			return
		}
		env, err := c.queue.Dequeue()
		if err != nil {
			c.fault(fmt.Errorf("mailbox contract violation: %w", err))
			return
		}
		c.invokeTell(env)
	}
}

func (c *Cell) handleChildSpawned(env *protocol.Envelope) {
	var payload protocol.ChildSpawnedPayload
	if err := env.DecodePayload(&payload); err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}
	c.identity.addChild(payload.Name, payload.Child)
	c.logger.Debug("child recorded", "name", payload.Name, "child", payload.Child)
}

func (c *Cell) handleChildStopped(env *protocol.Envelope) {
	var payload protocol.ChildStoppedPayload
	if err := env.DecodePayload(&payload); err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}
	c.identity.removeChild(payload.Child)
	c.logger.Debug("child removed", "child", payload.Child)
}

// handleEffectReply settles the correlated deferred handle. The slot is
// cleared on both the applied and failed paths; a reply for a free slot is
// stale and ignored.
func (c *Cell) handleEffectReply(env *protocol.Envelope, applied bool) {
	var payload protocol.EffectReplyPayload
	if err := env.DecodePayload(&payload); err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}
	d, err := c.table.Clear(payload.Index)
	if err != nil {
		c.fault(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
		return
	}
	if d == nil {
		c.logger.Debug("stale effect reply ignored", "index", payload.Index, "applied", applied)
		return
	}
	if applied {
		d.Resolve(payload.Value)
	} else {
		d.Reject(&effects.Failure{Value: payload.Value})
	}
}

// handleStop tears the cell down immediately, independent of mailbox
// contents or an in-flight invocation. Any pending suspension is abandoned.
func (c *Cell) handleStop() {
	c.logger.Debug("cell stopped by host", "path", c.identity.Path, "queued", c.queue.Len())
	c.setState(StateStopped)
}

// stopGraceful reports graceful termination to the host and stops.
func (c *Cell) stopGraceful() {
	env, err := protocol.NewEnvelope(protocol.ActionStop, nil)
	if err == nil {
		err = c.host.Deliver(env)
	}
	if err != nil {
		c.logger.Error("failed to report stop", "path", c.identity.Path, "error", err)
	}
	c.logger.Debug("cell stopped", "path", c.identity.Path)
	c.setState(StateStopped)
}

// send delivers an effect request to the host.
func (c *Cell) send(env *protocol.Envelope) error {
	return c.host.Deliver(env)
}

// fault serializes the error, reports it to the host exactly once, and
// irrevocably terminates the cell. Recovery, if any, is the host
// supervisor's responsibility.
func (c *Cell) fault(cause error) {
	if s := c.State(); s == StateStopped || s == StateFaulted {
		return
	}
	c.logger.Error("cell faulted", "path", c.identity.Path, "error", cause)

	payload := protocol.FaultedPayload{
		Sender:  c.identity.Path,
		Payload: protocol.FaultBody{Error: serializeFault(cause)},
	}
	env, err := protocol.NewEnvelope(protocol.ActionFaulted, payload)
	if err == nil {
		err = c.host.Deliver(env)
	}
	if err != nil {
		c.logger.Error("failed to report fault", "path", c.identity.Path, "error", err)
	}
	c.setState(StateFaulted)
}
