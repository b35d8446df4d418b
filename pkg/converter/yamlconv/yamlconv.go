// Package yamlconv provides a YAML converter factory backed by gopkg.in/yaml.v3.
package yamlconv

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
)

// AnnotationContentType mirrors the jsonconv gate: when the method's
// content-type annotation names a non-YAML media type, this factory declines.
const AnnotationContentType = "content-type"

const mediaType = "application/yaml"

// New returns a YAML converter factory. Like the JSON factory it matches
// every type by default; when registering both, put the one gated by a
// content-type annotation first or it will never be reached.
func New() converter.Factory {
	return factory{}
}

type factory struct {
	converter.NopFactory
}

func claims(ann descriptor.Annotations) bool {
	ct := ann.Get(AnnotationContentType)
	return ct == "" || strings.Contains(ct, "yaml")
}

func (factory) ResponseConverter(t reflect.Type, ann descriptor.Annotations) converter.ResponseConverter {
	if !claims(ann) {
		return nil
	}
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		v := reflect.New(t)
		if err := yaml.NewDecoder(r).Decode(v.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode YAML into %s: %w", t, err)
		}
		return v.Elem().Interface(), nil
	})
}

func (factory) RequestConverter(_ reflect.Type, ann descriptor.Annotations) converter.RequestConverter {
	if !claims(ann) {
		return nil
	}
	return converter.RequestFunc(func(v any) (*converter.Body, error) {
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T as YAML: %w", v, err)
		}
		return &converter.Body{ContentType: mediaType, Data: data}, nil
	})
}
