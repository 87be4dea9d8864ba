package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec converts envelopes to and from their serialized text form at the
// host boundary.
type Codec interface {
	// Encode serializes an envelope.
	Encode(env *Envelope) ([]byte, error)

	// Decode deserializes an envelope.
	Decode(data []byte) (*Envelope, error)
}

// JSONCodec is the default codec. Envelope bodies are already serialized
// JSON, so the whole envelope round-trips as a single JSON document.
type JSONCodec struct{}

// Encode serializes the envelope as JSON.
func (JSONCodec) Encode(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("cannot encode nil envelope")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode deserializes an envelope from JSON.
func (JSONCodec) Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Action == "" {
		return nil, fmt.Errorf("envelope has no action")
	}
	return &env, nil
}
