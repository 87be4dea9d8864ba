package effects

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/cellact/cella/deferred"
	"github.com/cellact/cella/protocol"
)

var (
	// ErrUnknownEffect is returned when invoking a capability path that was
	// not declared in the cell's effect descriptors.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrInvalidDescriptor is returned by Bind for a descriptor whose
	// capability path is empty or contains empty segments.
	ErrInvalidDescriptor = errors.New("invalid effect descriptor")

	// ErrDuplicateEffect is returned by Bind when two descriptors declare
	// the same capability path.
	ErrDuplicateEffect = errors.New("duplicate effect descriptor")
)

// Sender delivers an effect request envelope to the host.
type Sender func(env *protocol.Envelope) error

// Failure carries the host-reported reason an asynchronous effect failed.
type Failure struct {
	// Value is the serialized failure reason from the effectFailed reply.
	Value json.RawMessage
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if len(f.Value) == 0 {
		return "effect failed"
	}
	return "effect failed: " + string(f.Value)
}

// binding is one bound capability: the dispatch target for a single
// descriptor.
type binding struct {
	path  string
	async bool
}

// Registry is the capability namespace built once from a descriptor list:
// a static table from dot-separated capability path to dispatch behavior.
// From the behavior's point of view, invoking an entry is indistinguishable
// from calling an ordinary capability.
//
// A Registry is owned by a single cell and invoked only from its execution
// loop.
type Registry struct {
	bindings map[string]*binding
	table    *Table
	send     Sender
	self     func() string
}

// Bind builds the capability registry for a descriptor list. The self
// function supplies the cell's current address for outgoing requests.
func Bind(descriptors []protocol.EffectDescriptor, table *Table, send Sender, self func() string) (*Registry, error) {
	if table == nil {
		return nil, fmt.Errorf("effects: nil table")
	}
	if send == nil {
		return nil, fmt.Errorf("effects: nil sender")
	}
	r := &Registry{
		bindings: make(map[string]*binding, len(descriptors)),
		table:    table,
		send:     send,
		self:     self,
	}
	for _, desc := range descriptors {
		if err := validatePath(desc.Effect); err != nil {
			return nil, err
		}
		if _, exists := r.bindings[desc.Effect]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEffect, desc.Effect)
		}
		r.bindings[desc.Effect] = &binding{path: desc.Effect, async: desc.Async}
	}
	return r, nil
}

// validatePath checks that every dot-separated segment is non-empty.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty capability path", ErrInvalidDescriptor)
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return fmt.Errorf("%w: capability path %q has an empty segment", ErrInvalidDescriptor, path)
		}
	}
	return nil
}

// Invoke dispatches the capability at path with the given arguments.
//
// For a fire-and-forget effect it sends one notification to the host and
// returns a nil handle. For an asynchronous effect it allocates a
// correlation slot, sends the request, and returns the deferred handle that
// will settle when the host replies. If allocating the slot displaces an
// unsettled previous occupant, that occupant is rejected with ErrEvicted
// before the new request is sent.
func (r *Registry) Invoke(path string, args ...any) (*deferred.Deferred, error) {
	b, ok := r.bindings[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, path)
	}

	payload := protocol.EffectRequestPayload{
		Args:   sanitizeArgs(args),
		Sender: r.self(),
	}

	if !b.async {
		env, err := protocol.NewEnvelope(b.path, payload)
		if err != nil {
			return nil, err
		}
		return nil, r.send(env)
	}

	d := deferred.New()
	index, prev := r.table.Add(d)
	if prev != nil && !prev.Done() {
		prev.Reject(ErrEvicted)
	}
	payload.Index = &index

	env, err := protocol.NewEnvelope(b.path, payload)
	if err != nil {
		r.table.Set(index, nil)
		return nil, err
	}
	if err := r.send(env); err != nil {
		r.table.Set(index, nil)
		return nil, fmt.Errorf("failed to send effect request %q: %w", b.path, err)
	}
	return d, nil
}

// Has reports whether path is a bound capability.
func (r *Registry) Has(path string) bool {
	_, ok := r.bindings[path]
	return ok
}

// IsAsync reports whether the capability at path performs a correlated
// round trip. The second result is false if path is not bound.
func (r *Registry) IsAsync(path string) (bool, bool) {
	b, ok := r.bindings[path]
	if !ok {
		return false, false
	}
	return b.async, true
}

// Paths returns the bound capability paths in sorted order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.bindings))
	for path := range r.bindings {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// sanitizeArgs prepares invocation arguments for transmission. Live
// function references cannot cross the isolation boundary, so
// function-typed arguments are replaced with their textual name form.
func sanitizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = sanitizeArg(arg)
	}
	return out
}

func sanitizeArg(arg any) any {
	if arg == nil {
		return nil
	}
	v := reflect.ValueOf(arg)
	if v.Kind() != reflect.Func {
		return arg
	}
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fn.Name()
	}
	return v.Type().String()
}
