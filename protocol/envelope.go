// Package protocol defines the serialized envelope shapes exchanged between
// a cell and its enclosing host.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Host-to-cell and cell-to-host envelope actions. Effect requests sent by a
// cell use the effect's dot-separated capability path as the action instead
// of one of these constants.
const (
	// ActionInitialize sets the initial behavior and identity of a cell.
	ActionInitialize = "initialize"

	// ActionTell delivers an application message to the cell's behavior.
	ActionTell = "tell"

	// ActionChildSpawned records a new child under the cell's identity.
	ActionChildSpawned = "childSpawned"

	// ActionChildStopped removes a child from the cell's identity.
	ActionChildStopped = "childStopped"

	// ActionEffectApplied resolves a correlated asynchronous effect.
	ActionEffectApplied = "effectApplied"

	// ActionEffectFailed rejects a correlated asynchronous effect.
	ActionEffectFailed = "effectFailed"

	// ActionStop terminates a cell (host to cell) or reports graceful
	// termination (cell to host).
	ActionStop = "stop"

	// ActionFaulted reports a fatal error to the host before the cell
	// terminates.
	ActionFaulted = "faulted"
)

// Envelope is a tagged message exchanged between a cell and its host.
// The payload is kept in serialized form; its shape depends on the action.
type Envelope struct {
	// ID is a unique identifier assigned when the envelope is created,
	// used by hosts for tracing and deduplication.
	ID string `json:"id,omitempty"`

	// Action indicates how the payload must be interpreted.
	Action string `json:"action"`

	// Payload carries the serialized envelope body, if any.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope creates an envelope with a fresh ID and the given payload,
// which is serialized immediately.
func NewEnvelope(action string, payload any) (*Envelope, error) {
	env := &Envelope{
		ID:     uuid.NewString(),
		Action: action,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", action, err)
		}
		env.Payload = data
	}
	return env, nil
}

// DecodePayload deserializes the envelope body into v.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Action)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Action, err)
	}
	return nil
}

// IsEffectRequest reports whether the envelope's action is a capability path
// rather than one of the protocol actions.
func (e *Envelope) IsEffectRequest() bool {
	switch e.Action {
	case "", ActionInitialize, ActionTell, ActionChildSpawned, ActionChildStopped,
		ActionEffectApplied, ActionEffectFailed, ActionStop, ActionFaulted:
		return false
	}
	return true
}

// EffectDescriptor declares one host-side capability made available to a
// cell's behavior at initialization.
type EffectDescriptor struct {
	// Effect is the dot-separated capability path, e.g. "log.info".
	Effect string `json:"effect"`

	// Async indicates whether invocations perform a correlated round trip
	// (true) or fire-and-forget notifications (false).
	Async bool `json:"async"`
}

// InitializePayload is the body of an "initialize" envelope.
type InitializePayload struct {
	// Factory names a behavior factory registered with the cell. It is
	// resolved by key; cells never evaluate behavior source text.
	Factory string `json:"factory"`

	// Name is the actor's name within its parent.
	Name string `json:"name"`

	// Path is the actor's own address.
	Path string `json:"path"`

	// Parent is the address of the actor's parent, empty for root actors.
	Parent string `json:"parent,omitempty"`

	// Effects lists the capabilities to bind for behavior code.
	Effects []EffectDescriptor `json:"effects,omitempty"`
}

// TellPayload is the body of a "tell" envelope.
type TellPayload struct {
	// Sender is the address of the sending actor, empty if unknown.
	Sender string `json:"sender,omitempty"`

	// Message is the serialized application message.
	Message json.RawMessage `json:"message"`
}

// ChildSpawnedPayload is the body of a "childSpawned" envelope.
type ChildSpawnedPayload struct {
	// Name is the child's name within this actor.
	Name string `json:"name"`

	// Child is the child's address.
	Child string `json:"child"`
}

// ChildStoppedPayload is the body of a "childStopped" envelope.
type ChildStoppedPayload struct {
	// Child is the address of the stopped child.
	Child string `json:"child"`
}

// EffectReplyPayload is the body of an "effectApplied" or "effectFailed"
// envelope.
type EffectReplyPayload struct {
	// Index is the outstanding-effect slot the reply correlates to.
	Index int `json:"index"`

	// Value is the serialized result (effectApplied) or failure reason
	// (effectFailed).
	Value json.RawMessage `json:"value,omitempty"`
}

// EffectRequestPayload is the body of an effect request sent by a cell.
// The envelope action carries the capability path.
type EffectRequestPayload struct {
	// Args are the serialized invocation arguments.
	Args []any `json:"args"`

	// Sender is the requesting actor's address.
	Sender string `json:"sender"`

	// Index is the correlation slot for asynchronous effects; nil for
	// fire-and-forget notifications.
	Index *int `json:"index,omitempty"`
}

// Fault is the serialized form of a fatal cell error.
type Fault struct {
	// Message is the error text.
	Message string `json:"message"`

	// Kind identifies the concrete error type.
	Kind string `json:"kind,omitempty"`

	// Stack holds a goroutine stack trace when the fault originated from a
	// panic.
	Stack string `json:"stack,omitempty"`

	// Fields carries the error's enumerable diagnostic fields.
	Fields map[string]any `json:"fields,omitempty"`
}

// Error implements the error interface so decoded faults can travel as
// ordinary errors on the host side.
func (f *Fault) Error() string {
	if f.Kind != "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return f.Message
}

// FaultBody nests the fault inside the faulted envelope payload.
type FaultBody struct {
	Error *Fault `json:"error"`
}

// FaultedPayload is the body of a "faulted" envelope.
type FaultedPayload struct {
	// Sender is the address of the faulting actor.
	Sender string `json:"sender"`

	// Payload wraps the serialized error.
	Payload FaultBody `json:"payload"`
}
