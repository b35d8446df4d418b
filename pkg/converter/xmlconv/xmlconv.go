// Package xmlconv provides an XML converter factory. Struct types go through
// encoding/xml; *etree.Document gives callers raw document access for
// payloads without a fixed schema (SOAP envelopes, RSS, config exports).
package xmlconv

import (
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/beevik/etree"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
)

// AnnotationContentType gates struct conversion: structs are only claimed
// when the method's content-type annotation names an XML media type.
// *etree.Document is always claimed regardless of annotations.
const AnnotationContentType = "content-type"

const mediaType = "application/xml"

var documentType = reflect.TypeOf((*etree.Document)(nil))

// New returns the XML converter factory.
func New() converter.Factory {
	return factory{}
}

type factory struct {
	converter.NopFactory
}

func claimsStruct(t reflect.Type, ann descriptor.Annotations) bool {
	ct := ann.Get(AnnotationContentType)
	if !strings.Contains(ct, "xml") {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func (factory) ResponseConverter(t reflect.Type, ann descriptor.Annotations) converter.ResponseConverter {
	if t == documentType {
		return converter.ResponseFunc(func(r io.Reader) (any, error) {
			doc := etree.NewDocument()
			if _, err := doc.ReadFrom(r); err != nil {
				return nil, fmt.Errorf("failed to parse XML document: %w", err)
			}
			return doc, nil
		})
	}
	if !claimsStruct(t, ann) {
		return nil
	}
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		v := reflect.New(t)
		if err := xml.NewDecoder(r).Decode(v.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode XML into %s: %w", t, err)
		}
		return v.Elem().Interface(), nil
	})
}

func (factory) RequestConverter(t reflect.Type, ann descriptor.Annotations) converter.RequestConverter {
	if t == documentType {
		return converter.RequestFunc(func(v any) (*converter.Body, error) {
			doc, ok := v.(*etree.Document)
			if !ok {
				return nil, fmt.Errorf("expected *etree.Document, got %T", v)
			}
			data, err := doc.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to serialize XML document: %w", err)
			}
			return &converter.Body{ContentType: mediaType, Data: data}, nil
		})
	}
	if !claimsStruct(t, ann) {
		return nil
	}
	return converter.RequestFunc(func(v any) (*converter.Body, error) {
		data, err := xml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T as XML: %w", v, err)
		}
		return &converter.Body{ContentType: mediaType, Data: data}, nil
	})
}
