// Package protoconv provides a protobuf converter factory for types that
// implement proto.Message.
package protoconv

import (
	"fmt"
	"io"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
)

const mediaType = "application/x-protobuf"

var messageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// New returns a protobuf converter factory. It only matches pointer types
// implementing proto.Message and declines everything else, so it is safe to
// register ahead of catch-all factories.
func New() converter.Factory {
	return factory{}
}

type factory struct {
	converter.NopFactory
}

func (factory) ResponseConverter(t reflect.Type, _ descriptor.Annotations) converter.ResponseConverter {
	if t.Kind() != reflect.Pointer || !t.Implements(messageType) {
		return nil
	}
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		msg := reflect.New(t.Elem()).Interface().(proto.Message)
		if err := proto.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("failed to decode protobuf into %s: %w", t, err)
		}
		return msg, nil
	})
}

func (factory) RequestConverter(t reflect.Type, _ descriptor.Annotations) converter.RequestConverter {
	if t.Kind() != reflect.Pointer || !t.Implements(messageType) {
		return nil
	}
	return converter.RequestFunc(func(v any) (*converter.Body, error) {
		msg, ok := v.(proto.Message)
		if !ok {
			return nil, fmt.Errorf("expected proto.Message, got %T", v)
		}
		data, err := proto.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T as protobuf: %w", v, err)
		}
		return &converter.Body{ContentType: mediaType, Data: data}, nil
	})
}
