// Package converter defines the body and string conversion contract and the
// ordered factory chain that resolves converters for declared types.
//
// A Factory inspects a requested type and either produces a converter or
// returns nil to decline. Declining is a normal branch of the protocol, never
// an error; the chain only fails when every registered factory declines, and
// that failure is a configuration error surfaced at method-synthesis time.
//
// Registration order is a client configuration invariant: the chain returns
// the first converter produced, so a factory that matches every type must be
// registered last or everything after it is unreachable. The chain performs
// no reordering.
package converter

import (
	"io"
	"reflect"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

// Body is an encoded request body together with its media type.
type Body struct {
	ContentType string
	Data        []byte
}

// ResponseConverter decodes a wire-level response body into the declared
// application type. Convert must fully consume r before returning; the
// underlying transport resource is released as soon as Convert returns.
type ResponseConverter interface {
	Convert(r io.Reader) (any, error)
}

// RequestConverter encodes an application value into a request body.
type RequestConverter interface {
	Convert(v any) (*Body, error)
}

// StringConverter renders an application value as a path, query, or header
// string.
type StringConverter interface {
	Convert(v any) (string, error)
}

// Factory produces converters for requested types. Each method returns nil
// when the factory does not support the type; the chain then asks the next
// factory in registration order.
type Factory interface {
	ResponseConverter(t reflect.Type, ann descriptor.Annotations) ResponseConverter
	RequestConverter(t reflect.Type, ann descriptor.Annotations) RequestConverter
	StringConverter(t reflect.Type, ann descriptor.Annotations) StringConverter
}

// NopFactory declines every type in every direction. Embed it to implement
// only the directions a factory supports.
type NopFactory struct{}

// ResponseConverter declines.
func (NopFactory) ResponseConverter(reflect.Type, descriptor.Annotations) ResponseConverter {
	return nil
}

// RequestConverter declines.
func (NopFactory) RequestConverter(reflect.Type, descriptor.Annotations) RequestConverter {
	return nil
}

// StringConverter declines.
func (NopFactory) StringConverter(reflect.Type, descriptor.Annotations) StringConverter {
	return nil
}

// ResponseFunc adapts a function to a ResponseConverter.
type ResponseFunc func(r io.Reader) (any, error)

// Convert calls f.
func (f ResponseFunc) Convert(r io.Reader) (any, error) { return f(r) }

// RequestFunc adapts a function to a RequestConverter.
type RequestFunc func(v any) (*Body, error)

// Convert calls f.
func (f RequestFunc) Convert(v any) (*Body, error) { return f(v) }

// StringFunc adapts a function to a StringConverter.
type StringFunc func(v any) (string, error)

// Convert calls f.
func (f StringFunc) Convert(v any) (string, error) { return f(v) }
