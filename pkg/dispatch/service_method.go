package dispatch

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/transport"
)

// Args are the call arguments for one invocation, keyed by parameter name.
type Args map[string]any

// ServiceMethod is the synthesized execution plan for one declared method:
// the request builder plus the converters and adapter resolved from the
// chains. It is immutable and cached for the lifetime of the owning client;
// every invocation of the method flows through the same plan.
type ServiceMethod struct {
	desc      *descriptor.Descriptor
	adapter   CallAdapter
	respConv  converter.ResponseConverter
	reqConv   converter.RequestConverter
	stringers map[paramKey]converter.StringConverter
}

// paramKey identifies one binding. Name alone is not enough: the same name
// may be bound in different locations with different types.
type paramKey struct {
	kind descriptor.ParamKind
	name string
}

// Descriptor returns the method's descriptor.
func (m *ServiceMethod) Descriptor() *descriptor.Descriptor { return m.desc }

// ResponseType returns the unwrapped response body type, or nil when the
// method declares none.
func (m *ServiceMethod) ResponseType() reflect.Type { return m.desc.Returns.Elem }

// synthesize assembles a plan from the descriptor and the resolution chains.
// All failures here are configuration errors: they depend only on the
// descriptor and the registered factories, never on call arguments.
func synthesize(desc *descriptor.Descriptor, chain *converter.Chain, adapters []AdapterFactory) (*ServiceMethod, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	adapter, err := resolveAdapter(adapters, desc.Returns, desc.Annotations)
	if err != nil {
		return nil, err
	}

	m := &ServiceMethod{
		desc:      desc,
		adapter:   adapter,
		stringers: make(map[paramKey]converter.StringConverter),
	}

	// The adapter decides the body type the converter chain resolves
	// against; the declared wrapper never leaks into body conversion.
	if rt := adapter.ResponseType(); rt != nil {
		m.respConv, err = chain.ResponseConverter(rt, desc.Annotations)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range desc.Params {
		switch p.Kind {
		case descriptor.KindBody:
			m.reqConv, err = chain.RequestConverter(p.Type, desc.Annotations)
			if err != nil {
				return nil, err
			}
		default:
			sc, err := chain.StringConverter(p.Type, desc.Annotations)
			if err != nil {
				return nil, err
			}
			m.stringers[paramKey{p.Kind, p.Name}] = sc
		}
	}
	return m, nil
}

// buildRequest materializes one wire-level request from call arguments.
func (m *ServiceMethod) buildRequest(base *url.URL, args Args) (*transport.Request, error) {
	for name := range args {
		if !m.hasParam(name) {
			return nil, fmt.Errorf("method %q has no parameter %q", m.desc.Name, name)
		}
	}

	path := m.desc.Path
	query := url.Values{}
	header := make(http.Header, len(m.desc.Headers)+4)
	for k, vs := range m.desc.Headers {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	var body []byte
	for _, p := range m.desc.Params {
		arg, present := args[p.Name]
		if !present {
			if p.Kind == descriptor.KindPath || p.Required {
				return nil, fmt.Errorf("method %q: missing required %s parameter %q", m.desc.Name, p.Kind, p.Name)
			}
			continue
		}

		switch p.Kind {
		case descriptor.KindPath:
			s, err := m.stringers[paramKey{p.Kind, p.Name}].Convert(arg)
			if err != nil {
				return nil, fmt.Errorf("method %q: path parameter %q: %w", m.desc.Name, p.Name, err)
			}
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(s))
		case descriptor.KindQuery:
			s, err := m.stringers[paramKey{p.Kind, p.Name}].Convert(arg)
			if err != nil {
				return nil, fmt.Errorf("method %q: query parameter %q: %w", m.desc.Name, p.Name, err)
			}
			query.Add(p.Name, s)
		case descriptor.KindHeader:
			s, err := m.stringers[paramKey{p.Kind, p.Name}].Convert(arg)
			if err != nil {
				return nil, fmt.Errorf("method %q: header parameter %q: %w", m.desc.Name, p.Name, err)
			}
			header.Add(p.Name, s)
		case descriptor.KindBody:
			encoded, err := m.reqConv.Convert(arg)
			if err != nil {
				return nil, fmt.Errorf("method %q: body parameter %q: %w", m.desc.Name, p.Name, err)
			}
			body = encoded.Data
			if header.Get("Content-Type") == "" {
				header.Set("Content-Type", encoded.ContentType)
			}
		}
	}

	// Templates validate as "/..."; resolving them relative keeps the base
	// URL's path prefix instead of replacing it. The "./" guard stops a
	// colon in the first segment from reading as a URL scheme.
	rel, err := url.Parse("./" + strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("method %q: invalid request path %q: %w", m.desc.Name, path, err)
	}
	target := base.ResolveReference(rel)
	if q := query.Encode(); q != "" {
		if target.RawQuery != "" {
			target.RawQuery += "&" + q
		} else {
			target.RawQuery = q
		}
	}

	return &transport.Request{
		Method: m.desc.Method,
		URL:    target.String(),
		Header: header,
		Body:   body,
	}, nil
}

func (m *ServiceMethod) hasParam(name string) bool {
	for _, p := range m.desc.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}
