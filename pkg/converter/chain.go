package converter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

// Direction identifies which conversion a chain lookup resolves.
type Direction string

// Conversion directions.
const (
	DirectionResponse Direction = "response body"
	DirectionRequest  Direction = "request body"
	DirectionString   Direction = "string"
)

// NoConverterError reports that every factory in the chain declined a type.
// It is a configuration error: the outcome depends only on the registered
// factories and the declared type, never on call arguments.
type NoConverterError struct {
	Direction Direction
	Type      reflect.Type
	Tried     []string
}

// Error lists the factories tried, in registration order, to make the
// missing registration obvious.
func (e *NoConverterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no %s converter for %s; tried:", e.Direction, e.Type)
	for _, name := range e.Tried {
		b.WriteString("\n  * ")
		b.WriteString(name)
	}
	return b.String()
}

// Chain resolves converters by asking each registered factory in order and
// returning the first non-nil result. A Chain is immutable after creation
// and safe for concurrent use.
type Chain struct {
	factories []Factory
}

// NewChain builds a chain over the given factories in registration order.
func NewChain(factories ...Factory) *Chain {
	return &Chain{factories: append([]Factory(nil), factories...)}
}

// Factories returns the registered factories in order.
func (c *Chain) Factories() []Factory {
	return append([]Factory(nil), c.factories...)
}

// start returns the index after skip, or 0 when skip is nil. Passing a
// factory as skip implements "ask the next factory": delegating factories
// resolve the converter the rest of the chain would have produced.
func (c *Chain) start(skip Factory) int {
	if skip == nil {
		return 0
	}
	for i, f := range c.factories {
		if f == skip {
			return i + 1
		}
	}
	return 0
}

func factoryName(f Factory) string {
	return fmt.Sprintf("%T", f)
}

// NextResponseConverter resolves a response-body converter for t, starting
// after skip.
func (c *Chain) NextResponseConverter(skip Factory, t reflect.Type, ann descriptor.Annotations) (ResponseConverter, error) {
	tried := make([]string, 0, len(c.factories))
	for _, f := range c.factories[c.start(skip):] {
		if conv := f.ResponseConverter(t, ann); conv != nil {
			return conv, nil
		}
		tried = append(tried, factoryName(f))
	}
	return nil, &NoConverterError{Direction: DirectionResponse, Type: t, Tried: tried}
}

// ResponseConverter resolves a response-body converter for t from the start
// of the chain.
func (c *Chain) ResponseConverter(t reflect.Type, ann descriptor.Annotations) (ResponseConverter, error) {
	return c.NextResponseConverter(nil, t, ann)
}

// NextRequestConverter resolves a request-body converter for t, starting
// after skip.
func (c *Chain) NextRequestConverter(skip Factory, t reflect.Type, ann descriptor.Annotations) (RequestConverter, error) {
	tried := make([]string, 0, len(c.factories))
	for _, f := range c.factories[c.start(skip):] {
		if conv := f.RequestConverter(t, ann); conv != nil {
			return conv, nil
		}
		tried = append(tried, factoryName(f))
	}
	return nil, &NoConverterError{Direction: DirectionRequest, Type: t, Tried: tried}
}

// RequestConverter resolves a request-body converter for t from the start of
// the chain.
func (c *Chain) RequestConverter(t reflect.Type, ann descriptor.Annotations) (RequestConverter, error) {
	return c.NextRequestConverter(nil, t, ann)
}

// NextStringConverter resolves a string converter for t, starting after skip.
func (c *Chain) NextStringConverter(skip Factory, t reflect.Type, ann descriptor.Annotations) (StringConverter, error) {
	tried := make([]string, 0, len(c.factories))
	for _, f := range c.factories[c.start(skip):] {
		if conv := f.StringConverter(t, ann); conv != nil {
			return conv, nil
		}
		tried = append(tried, factoryName(f))
	}
	return nil, &NoConverterError{Direction: DirectionString, Type: t, Tried: tried}
}

// StringConverter resolves a string converter for t from the start of the
// chain.
func (c *Chain) StringConverter(t reflect.Type, ann descriptor.Annotations) (StringConverter, error) {
	return c.NextStringConverter(nil, t, ann)
}
