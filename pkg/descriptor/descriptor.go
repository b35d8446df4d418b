// Package descriptor defines the static metadata for declared remote methods.
//
// A Descriptor is the declarative schema for one HTTP method: verb, path
// template, parameter bindings, and the declared return type. Descriptors are
// built explicitly at configuration time (by hand or via the openapi loader)
// and never mutated afterward; the dispatch engine keys all resolution and
// caching off them instead of inspecting live call values.
package descriptor

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
)

// ParamKind identifies where a parameter is bound in the outgoing request.
type ParamKind int

// Parameter binding locations.
const (
	KindPath ParamKind = iota
	KindQuery
	KindHeader
	KindBody
)

// String returns the binding location name.
func (k ParamKind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindQuery:
		return "query"
	case KindHeader:
		return "header"
	case KindBody:
		return "body"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Annotations are free-form key-value hints attached to a descriptor or
// return type. Converter and adapter factories may consult them during
// resolution (for example a content-type override).
type Annotations map[string]string

// Get returns the annotation value for key, or "" when absent.
func (a Annotations) Get(key string) string {
	if a == nil {
		return ""
	}
	return a[key]
}

// Param describes one parameter binding of a declared method.
type Param struct {
	// Name is the binding name: the path placeholder, query key, header
	// name, or an arbitrary label for the body parameter.
	Name string

	// Kind is the binding location.
	Kind ParamKind

	// Type is the declared Go type of the argument. It drives string and
	// request-body converter resolution at synthesis time.
	Type reflect.Type

	// Required marks parameters that must be present in the call arguments.
	// Path parameters are always required regardless of this flag.
	Required bool
}

// ReturnType is the declared return shape of a method: an optional wrapper
// (resolved by the call adapter chain) around the response body element type
// (resolved by the converter chain).
type ReturnType struct {
	// Wrapper names the adaptation target, e.g. "future" or "channel".
	// Empty means the raw call handle.
	Wrapper string

	// Elem is the response body type. A nil Elem declares that the caller
	// does not want a decoded body (fire-and-forget or status-only methods).
	Elem reflect.Type
}

// Descriptor is the immutable description of one declared remote method.
type Descriptor struct {
	// Name uniquely identifies the method within a client. It is the cache
	// key for the synthesized execution plan.
	Name string

	// Method is the HTTP verb.
	Method string

	// Path is the path template relative to the client base URL. Segments
	// of the form {name} are substituted from path parameters.
	Path string

	// Params are the parameter bindings, in declaration order.
	Params []Param

	// Returns declares the method's return shape.
	Returns ReturnType

	// Headers are static headers applied to every request of this method.
	Headers http.Header

	// Annotations carry resolution hints for converter/adapter factories.
	Annotations Annotations
}

var placeholderRe = regexp.MustCompile(`\{([^/{}]+)\}`)

// PathPlaceholders returns the placeholder names in the path template, in
// order of appearance.
func (d *Descriptor) PathPlaceholders() []string {
	matches := placeholderRe.FindAllStringSubmatch(d.Path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// BodyParam returns the body parameter, or nil if the method declares none.
func (d *Descriptor) BodyParam() *Param {
	for i := range d.Params {
		if d.Params[i].Kind == KindBody {
			return &d.Params[i]
		}
	}
	return nil
}

// methodsWithoutBody are verbs for which a request body binding is rejected.
var methodsWithoutBody = map[string]bool{
	http.MethodGet:  true,
	http.MethodHead: true,
}

// Validate checks the descriptor for configuration mistakes: missing name or
// verb, unbound path placeholders, path parameters without a placeholder,
// duplicate bindings, and ambiguous body declarations. A non-nil result is a
// configuration error for the method, not a per-call failure.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if d.Method == "" {
		return fmt.Errorf("method %q: missing HTTP verb", d.Name)
	}
	if d.Method != strings.ToUpper(d.Method) {
		return fmt.Errorf("method %q: HTTP verb %q must be uppercase", d.Name, d.Method)
	}
	if d.Path == "" || !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("method %q: path template %q must start with /", d.Name, d.Path)
	}

	placeholders := make(map[string]bool)
	for _, p := range d.PathPlaceholders() {
		if placeholders[p] {
			return fmt.Errorf("method %q: duplicate path placeholder {%s}", d.Name, p)
		}
		placeholders[p] = true
	}

	seen := make(map[string]bool)
	bound := make(map[string]bool)
	bodies := 0
	for _, p := range d.Params {
		if p.Name == "" && p.Kind != KindBody {
			return fmt.Errorf("method %q: %s parameter with empty name", d.Name, p.Kind)
		}
		key := p.Kind.String() + ":" + p.Name
		if seen[key] {
			return fmt.Errorf("method %q: duplicate %s parameter %q", d.Name, p.Kind, p.Name)
		}
		seen[key] = true

		switch p.Kind {
		case KindPath:
			if !placeholders[p.Name] {
				return fmt.Errorf("method %q: path parameter %q has no {%s} placeholder", d.Name, p.Name, p.Name)
			}
			bound[p.Name] = true
		case KindBody:
			bodies++
			if bodies > 1 {
				return fmt.Errorf("method %q: multiple body parameters", d.Name)
			}
			if methodsWithoutBody[d.Method] {
				return fmt.Errorf("method %q: %s request cannot carry a body", d.Name, d.Method)
			}
		}
	}

	for p := range placeholders {
		if !bound[p] {
			return fmt.Errorf("method %q: path placeholder {%s} has no bound parameter", d.Name, p)
		}
	}
	return nil
}
