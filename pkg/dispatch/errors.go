package dispatch

import (
	"errors"
	"fmt"
	"reflect"
)

// Usage errors: programming mistakes on the caller's side. They fail fast
// and have no side effects.
var (
	// ErrAlreadyExecuted reports a second Execute or Enqueue on a Call.
	ErrAlreadyExecuted = errors.New("call already executed")

	// ErrCanceled reports Execute or Enqueue on a canceled Call.
	ErrCanceled = errors.New("call canceled")

	// ErrTransportContract reports a misbehaving transport collaborator,
	// such as a nil TransportCall from the factory.
	ErrTransportContract = errors.New("transport violated the call factory contract")
)

// ConfigurationError reports that a method cannot be synthesized: an unknown
// method name, an invalid descriptor, or an exhausted converter/adapter
// chain. It depends only on client configuration and the declared types, so
// it surfaces at Register time under eager initialization and on first
// invocation otherwise. It is fatal to the method and never retried.
type ConfigurationError struct {
	Method string
	Err    error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("method %q: %v", e.Method, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError wraps an I/O failure reported by the transport
// collaborator. The engine never retries; callers distinguish it from
// conversion and usage failures via errors.As.
type TransportError struct {
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// ConversionError reports a 2xx response whose body could not be converted
// to the declared type. It is terminal for the call and distinct from both
// transport failures ("could not talk to the server") and protocol errors
// ("server said no").
type ConversionError struct {
	Type reflect.Type
	Err  error
}

// Error implements error.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert response body to %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error { return e.Err }
