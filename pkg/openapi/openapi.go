// Package openapi builds method descriptors from OpenAPI 3.x documents, so a
// service description can drive the dispatch engine without hand-written
// descriptors. Operation IDs become method names; parameters become bindings;
// request/response bodies default to map[string]any unless a type registry
// entry names a concrete Go type for the operation.
package openapi

import (
	"fmt"
	"net/http"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

// Options customize descriptor generation.
type Options struct {
	// Types maps operation IDs to the Go type used for that operation's
	// request and response bodies. Operations not listed use DefaultType.
	Types map[string]reflect.Type

	// Wrappers maps operation IDs to a declared return wrapper ("future",
	// "channel", ...). Unlisted operations return the raw call handle.
	Wrappers map[string]string

	// DefaultType is the body type for unlisted operations. Defaults to
	// map[string]any.
	DefaultType reflect.Type
}

var genericBody = reflect.TypeOf(map[string]any{})

// Load reads an OpenAPI document (JSON or YAML) from path and returns its
// descriptors.
func Load(path string, opts *Options) ([]*descriptor.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI document: %w", err)
	}
	return Parse(data, opts)
}

// Parse builds descriptors from an OpenAPI document held in memory.
func Parse(data []byte, opts *Options) ([]*descriptor.Descriptor, error) {
	if opts == nil {
		opts = &Options{}
	}
	bodyType := opts.DefaultType
	if bodyType == nil {
		bodyType = genericBody
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}

	var descs []*descriptor.Descriptor
	for path, item := range doc.Paths.Map() {
		for verb, op := range item.Operations() {
			desc, err := buildDescriptor(path, verb, item, op, opts, bodyType)
			if err != nil {
				return nil, err
			}
			descs = append(descs, desc)
		}
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs, nil
}

func buildDescriptor(path, verb string, item *openapi3.PathItem, op *openapi3.Operation, opts *Options, defaultBody reflect.Type) (*descriptor.Descriptor, error) {
	name := op.OperationID
	if name == "" {
		name = operationName(verb, path)
	}

	elem := defaultBody
	if t, ok := opts.Types[name]; ok {
		elem = t
	}

	desc := &descriptor.Descriptor{
		Name:        name,
		Method:      strings.ToUpper(verb),
		Path:        path,
		Annotations: descriptor.Annotations{},
	}
	if w, ok := opts.Wrappers[name]; ok {
		desc.Returns.Wrapper = w
	}

	// Path-level parameters apply to every operation; operation-level ones
	// are appended after and may not duplicate them per the OpenAPI spec.
	for _, ref := range append(append(openapi3.Parameters{}, item.Parameters...), op.Parameters...) {
		p := ref.Value
		if p == nil {
			continue
		}
		kind, ok := paramKind(p.In)
		if !ok {
			// Cookie parameters have no binding in this engine.
			continue
		}
		desc.Params = append(desc.Params, descriptor.Param{
			Name:     p.Name,
			Kind:     kind,
			Type:     schemaType(p.Schema),
			Required: p.Required,
		})
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		desc.Params = append(desc.Params, descriptor.Param{
			Name:     "body",
			Kind:     descriptor.KindBody,
			Type:     elem,
			Required: op.RequestBody.Value.Required,
		})
		if ct := firstContentType(op.RequestBody.Value.Content); ct != "" {
			desc.Annotations[annotationContentType] = ct
		}
	}

	if hasBodyResponse(op) {
		desc.Returns.Elem = elem
	}

	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("operation %q: %w", name, err)
	}
	return desc, nil
}

// annotationContentType matches the content-type annotation the converter
// factories consult.
const annotationContentType = "content-type"

func operationName(verb, path string) string {
	cleaned := strings.NewReplacer("/", "_", "{", "", "}", "").Replace(strings.Trim(path, "/"))
	return strings.ToLower(verb) + "_" + cleaned
}

func paramKind(in string) (descriptor.ParamKind, bool) {
	switch in {
	case openapi3.ParameterInPath:
		return descriptor.KindPath, true
	case openapi3.ParameterInQuery:
		return descriptor.KindQuery, true
	case openapi3.ParameterInHeader:
		return descriptor.KindHeader, true
	default:
		return 0, false
	}
}

func schemaType(ref *openapi3.SchemaRef) reflect.Type {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return reflect.TypeOf("")
	}
	switch {
	case ref.Value.Type.Is(openapi3.TypeInteger):
		return reflect.TypeOf(0)
	case ref.Value.Type.Is(openapi3.TypeNumber):
		return reflect.TypeOf(0.0)
	case ref.Value.Type.Is(openapi3.TypeBoolean):
		return reflect.TypeOf(true)
	default:
		return reflect.TypeOf("")
	}
}

func firstContentType(content openapi3.Content) string {
	if content == nil {
		return ""
	}
	if _, ok := content["application/json"]; ok {
		return "application/json"
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func hasBodyResponse(op *openapi3.Operation) bool {
	if op.Responses == nil {
		return false
	}
	for code, ref := range op.Responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		if !strings.HasPrefix(code, "2") && code != "default" {
			continue
		}
		if code == fmt.Sprint(http.StatusNoContent) || code == fmt.Sprint(http.StatusResetContent) {
			continue
		}
		if len(ref.Value.Content) > 0 {
			return true
		}
	}
	return false
}
