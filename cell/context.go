package cell

import (
	"log/slog"

	"github.com/cellact/cella/deferred"
	"github.com/cellact/cella/effects"
)

// Context provides one behavior invocation with its view of the actor's
// identity and with the bound capability namespace. Identity accessors
// return snapshots captured before the invocation; mutating them has no
// effect on the cell. A Context stays valid through the invocation's
// suspension resumes but must not be retained beyond them or handed to
// other goroutines.
type Context struct {
	name     string
	self     string
	parent   string
	children map[string]string
	sender   string
	registry *effects.Registry
	logger   *slog.Logger
}

// Name returns the actor's name.
func (c *Context) Name() string { return c.name }

// Self returns the actor's own address.
func (c *Context) Self() string { return c.self }

// Parent returns the parent actor's address, empty for root actors.
func (c *Context) Parent() string { return c.parent }

// Sender returns the address of the actor that sent the current message,
// empty if unknown.
func (c *Context) Sender() string { return c.sender }

// Children returns the actor's child name-to-address mapping. The map is a
// snapshot; changes to it are discarded when the invocation returns.
func (c *Context) Children() map[string]string { return c.children }

// Invoke dispatches a bound capability. Fire-and-forget effects return a
// nil handle; asynchronous effects return the deferred handle that settles
// when the host replies, typically awaited via Suspend.
func (c *Context) Invoke(path string, args ...any) (*deferred.Deferred, error) {
	return c.registry.Invoke(path, args...)
}

// Logger returns the cell's structured logger.
func (c *Context) Logger() *slog.Logger { return c.logger }
