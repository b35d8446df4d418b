package dispatch

import (
	"reflect"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

// CallAdapter transforms a prepared *Call into the method's declared return
// shape: the call itself, a future, a channel, or any caller-defined handle.
// ResponseType exposes the unwrapped body type so the converter chain can
// resolve the body converter independently of the adaptation target.
type CallAdapter interface {
	ResponseType() reflect.Type
	Adapt(call *Call) any
}

// AdapterFactory inspects a declared return type and either produces an
// adapter for it or returns nil to decline. Factories are consulted in
// registration order; the client appends the identity adapter factory last,
// so resolution always terminates.
type AdapterFactory interface {
	Get(rt descriptor.ReturnType, ann descriptor.Annotations) CallAdapter
}

// identityFactory produces the default adapter: Call in, Call out. It only
// claims the empty wrapper, leaving named wrappers to registered factories.
type identityFactory struct{}

func (identityFactory) Get(rt descriptor.ReturnType, _ descriptor.Annotations) CallAdapter {
	if rt.Wrapper != "" {
		return nil
	}
	return identityAdapter{elem: rt.Elem}
}

type identityAdapter struct {
	elem reflect.Type
}

func (a identityAdapter) ResponseType() reflect.Type { return a.elem }

func (a identityAdapter) Adapt(call *Call) any { return call }

// NextAdapter walks the factories in registration order starting after skip
// and returns the first adapter produced, or an error counting the factories
// tried. A delegating factory passes itself as skip to hand the declared
// type to the rest of the chain. A nil or unregistered skip starts from the
// head.
func NextAdapter(factories []AdapterFactory, skip AdapterFactory, rt descriptor.ReturnType, ann descriptor.Annotations) (CallAdapter, error) {
	start := 0
	if skip != nil {
		for i, f := range factories {
			if f == skip {
				start = i + 1
				break
			}
		}
	}
	for _, f := range factories[start:] {
		if a := f.Get(rt, ann); a != nil {
			return a, nil
		}
	}
	// Unreachable when the identity factory is registered last, but a
	// caller-supplied factory slice is validated here all the same.
	return nil, &NoAdapterError{Wrapper: rt.Wrapper, Tried: len(factories) - start}
}

func resolveAdapter(factories []AdapterFactory, rt descriptor.ReturnType, ann descriptor.Annotations) (CallAdapter, error) {
	return NextAdapter(factories, nil, rt, ann)
}

// NoAdapterError reports that no registered factory claimed a declared
// wrapper type. Like converter misses it is a configuration error.
type NoAdapterError struct {
	Wrapper string
	Tried   int
}

// Error implements error.
func (e *NoAdapterError) Error() string {
	return "no call adapter for wrapper \"" + e.Wrapper + "\""
}
