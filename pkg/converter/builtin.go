package converter

import (
	"fmt"
	"io"
	"reflect"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

var (
	bytesType  = reflect.TypeOf([]byte(nil))
	stringType = reflect.TypeOf("")
)

// Builtin returns the fallback factory the client appends after all
// user-registered factories. It passes raw bodies through untouched for
// []byte and string, and renders any value as a string via the fmt package.
//
// The string direction matches unconditionally, which is exactly why this
// factory must stay last in the chain.
func Builtin() Factory {
	return builtinFactory{}
}

type builtinFactory struct{}

func (builtinFactory) ResponseConverter(t reflect.Type, _ descriptor.Annotations) ResponseConverter {
	switch t {
	case bytesType:
		return ResponseFunc(func(r io.Reader) (any, error) {
			return io.ReadAll(r)
		})
	case stringType:
		return ResponseFunc(func(r io.Reader) (any, error) {
			b, err := io.ReadAll(r)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		})
	default:
		return nil
	}
}

func (builtinFactory) RequestConverter(t reflect.Type, _ descriptor.Annotations) RequestConverter {
	switch t {
	case bytesType:
		return RequestFunc(func(v any) (*Body, error) {
			b, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("expected []byte, got %T", v)
			}
			return &Body{ContentType: "application/octet-stream", Data: b}, nil
		})
	case stringType:
		return RequestFunc(func(v any) (*Body, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", v)
			}
			return &Body{ContentType: "text/plain; charset=utf-8", Data: []byte(s)}, nil
		})
	default:
		return nil
	}
}

func (builtinFactory) StringConverter(reflect.Type, descriptor.Annotations) StringConverter {
	return StringFunc(func(v any) (string, error) {
		if s, ok := v.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return fmt.Sprint(v), nil
	})
}
