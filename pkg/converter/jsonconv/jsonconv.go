// Package jsonconv provides a JSON converter factory backed by encoding/json,
// with optional JSON Schema validation of response payloads.
package jsonconv

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
)

// AnnotationContentType is the descriptor annotation consulted to gate media
// types. When present and not a JSON media type, this factory declines so a
// later factory (yaml, xml) can claim the method.
const AnnotationContentType = "content-type"

const mediaType = "application/json"

// Option configures the factory.
type Option func(*factory)

// WithResponseSchema compiles the given JSON Schema document and validates
// every decoded response payload against it before the payload is bound to
// the declared type. A schema violation fails the conversion.
func WithResponseSchema(schemaJSON string) Option {
	return func(f *factory) {
		f.schemaJSON = schemaJSON
	}
}

// WithIndent emits indented request bodies. Useful for debugging proxies;
// wire size is rarely a concern for control-plane APIs.
func WithIndent(indent string) Option {
	return func(f *factory) {
		f.indent = indent
	}
}

// New returns a JSON converter factory. It matches every type unless the
// method's content-type annotation names a non-JSON media type, so register
// it after more specific factories.
func New(opts ...Option) (converter.Factory, error) {
	f := &factory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.schemaJSON != "" {
		schema, err := jsonschema.CompileString("response.schema.json", f.schemaJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to compile response schema: %w", err)
		}
		f.schema = schema
	}
	return f, nil
}

// MustNew is New for option sets known to be valid at compile time.
func MustNew(opts ...Option) converter.Factory {
	f, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return f
}

type factory struct {
	converter.NopFactory
	schemaJSON string
	schema     *jsonschema.Schema
	indent     string
}

func (f *factory) claims(ann descriptor.Annotations) bool {
	ct := ann.Get(AnnotationContentType)
	return ct == "" || strings.Contains(ct, "json")
}

func (f *factory) ResponseConverter(t reflect.Type, ann descriptor.Annotations) converter.ResponseConverter {
	if !f.claims(ann) {
		return nil
	}
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if f.schema != nil {
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("response is not valid JSON: %w", err)
			}
			if err := f.schema.Validate(doc); err != nil {
				return nil, fmt.Errorf("response failed schema validation: %w", err)
			}
		}
		v := reflect.New(t)
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode JSON into %s: %w", t, err)
		}
		return v.Elem().Interface(), nil
	})
}

func (f *factory) RequestConverter(_ reflect.Type, ann descriptor.Annotations) converter.RequestConverter {
	if !f.claims(ann) {
		return nil
	}
	return converter.RequestFunc(func(v any) (*converter.Body, error) {
		var (
			data []byte
			err  error
		)
		if f.indent != "" {
			data, err = json.MarshalIndent(v, "", f.indent)
		} else {
			data, err = json.Marshal(v)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T as JSON: %w", v, err)
		}
		return &converter.Body{ContentType: mediaType, Data: data}, nil
	})
}
