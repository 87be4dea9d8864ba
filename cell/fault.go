package cell

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cellact/cella/protocol"
)

// Diagnostic is implemented by errors that carry structured diagnostic
// fields. The fields are serialized into the fault report sent to the host.
type Diagnostic interface {
	error

	// Diagnostics returns the error's enumerable diagnostic fields.
	Diagnostics() map[string]any
}

// panicError wraps a recovered panic value so it can travel the fault path
// as an ordinary error, with the stack captured at recovery.
type panicError struct {
	value any
	stack []byte
}

func newPanicError(value any) *panicError {
	return &panicError{value: value, stack: debug.Stack()}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("behavior panicked: %v", e.value)
}

// serializeFault converts err into its wire form, preserving the concrete
// type name, any structured diagnostic fields, and a panic stack when one
// was captured.
func serializeFault(err error) *protocol.Fault {
	fault := &protocol.Fault{
		Message: err.Error(),
		Kind:    fmt.Sprintf("%T", err),
	}

	var diag Diagnostic
	if errors.As(err, &diag) {
		fault.Fields = diag.Diagnostics()
	}

	var pe *panicError
	if errors.As(err, &pe) {
		fault.Stack = string(pe.stack)
		fault.Kind = fmt.Sprintf("%T", pe.value)
	}
	return fault
}
