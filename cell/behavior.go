package cell

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cellact/cella/deferred"
)

var (
	// ErrFactoryNotFound is the fault cause when an initialize envelope
	// names an unregistered behavior factory.
	ErrFactoryNotFound = errors.New("behavior factory not registered")

	// ErrDuplicateFactory is returned when registering a factory under a
	// name that is already taken.
	ErrDuplicateFactory = errors.New("behavior factory already registered")
)

// Behavior is the current message-handling function of an actor. It is
// applied to one message at a time and returns the actor's next state:
// continue with another behavior, suspend on a pending result, or stop.
// A returned error is fatal and faults the cell.
type Behavior func(ctx *Context, msg json.RawMessage) (Next, error)

// ResumeFunc continues a suspended invocation once the awaited handle
// settles. It receives the settled value or error and produces the
// invocation's final result.
type ResumeFunc func(value any, err error) (Next, error)

type nextKind uint8

const (
	nextInvalid nextKind = iota
	nextContinue
	nextSuspend
	nextStop
)

// Next is the result of applying a behavior to a message. The zero value is
// invalid and faults the cell; construct results with Continue, Suspend, or
// Stop.
type Next struct {
	kind     nextKind
	behavior Behavior
	awaited  *deferred.Deferred
	resume   ResumeFunc
}

// Continue installs b as the behavior for the next message. Passing the
// same behavior keeps it in place.
func Continue(b Behavior) Next {
	return Next{kind: nextContinue, behavior: b}
}

// Suspend parks the invocation until d settles, then calls resume with the
// settled result to obtain the final Next. The cell stays busy while
// suspended: application messages queue in the mailbox, protocol envelopes
// are still handled on receipt.
func Suspend(d *deferred.Deferred, resume ResumeFunc) Next {
	return Next{kind: nextSuspend, awaited: d, resume: resume}
}

// Stop terminates the cell gracefully after the current message.
func Stop() Next {
	return Next{kind: nextStop}
}

// Factory produces an actor's initial behavior. It is invoked exactly once,
// when the cell handles its initialize envelope.
type Factory func() (Behavior, error)

// FactoryRegistry resolves behavior factories by registered key. Initialize
// envelopes name a factory; cells never evaluate behavior source text.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry returns an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name.
func (r *FactoryRegistry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("factory name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory %q must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateFactory, name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name.
func (r *FactoryRegistry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// Names returns the registered factory names.
func (r *FactoryRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
