// Package dispatch implements the typesafe request-dispatch engine: it
// synthesizes one cached execution plan per declared method, executes plans
// through a pluggable transport, classifies responses by HTTP status, and
// adapts call handles into caller-facing wrapper types.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/logging"
	"github.com/typedrest/typedrest/pkg/transport"
)

// RequestIDHeader is the header set on every request when request
// correlation is enabled.
const RequestIDHeader = "X-Request-Id"

// Client is the dispatch facade. It owns the method registry, the converter
// and adapter chains, and the transport collaborator. After construction it
// is read-mostly shared state; the plan cache is the only part written at
// runtime and is guarded per method key. Safe for concurrent use.
type Client struct {
	base          *url.URL
	transport     transport.CallFactory
	chain         *converter.Chain
	userFactories []converter.Factory
	adapters      []AdapterFactory
	callbackExec  transport.CallbackExecutor
	registry      *registry
	log           *slog.Logger
	eager         bool
	requestIDs    bool
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default HTTP transport.
func WithTransport(factory transport.CallFactory) Option {
	return func(c *Client) {
		if factory != nil {
			c.transport = factory
		}
	}
}

// WithConverters registers converter factories, in order. Order is a
// configuration invariant: resolution returns the first factory that claims
// a type, so a factory that matches everything must come last. The builtin
// fallback factory is always appended after these.
func WithConverters(factories ...converter.Factory) Option {
	return func(c *Client) {
		c.userFactories = append(c.userFactories, factories...)
	}
}

// WithAdapters registers call adapter factories, in order. The identity
// adapter (raw *Call handle) is always appended after these.
func WithAdapters(factories ...AdapterFactory) Option {
	return func(c *Client) {
		c.adapters = append(c.adapters, factories...)
	}
}

// WithCallbackExecutor routes async completion notifications through exec
// instead of delivering them on the transport's goroutine.
func WithCallbackExecutor(exec transport.CallbackExecutor) Option {
	return func(c *Client) {
		c.callbackExec = exec
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithEagerInit synthesizes every method at Register time, surfacing
// configuration errors immediately instead of on first invocation.
func WithEagerInit() Option {
	return func(c *Client) {
		c.eager = true
	}
}

// WithRequestIDs stamps every outgoing request with a fresh UUID in the
// X-Request-Id header for cross-system correlation.
func WithRequestIDs() Option {
	return func(c *Client) {
		c.requestIDs = true
	}
}

// New creates a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:     base,
		registry: newRegistry(),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = transport.NewHTTPCallFactory()
	}
	c.chain = converter.NewChain(append(c.userFactories, converter.Builtin())...)
	c.adapters = append(c.adapters, identityFactory{})
	return c, nil
}

// Register adds method descriptors to the client. Names must be unique.
// Under eager initialization every descriptor is synthesized here and all
// configuration errors are reported joined; otherwise synthesis is deferred
// to each method's first invocation.
func (c *Client) Register(descs ...*descriptor.Descriptor) error {
	for _, desc := range descs {
		if !c.registry.add(desc) {
			return &ConfigurationError{Method: desc.Name, Err: errors.New("method already registered")}
		}
		c.log.Debug("registered method", "method", desc.Name, "verb", desc.Method, "path", desc.Path)
	}

	if !c.eager {
		return nil
	}

	var errs []error
	for _, desc := range descs {
		if _, err := c.plan(desc.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Methods returns the registered method names.
func (c *Client) Methods() []string {
	return c.registry.names()
}

// plan returns the cached execution plan for a method, synthesizing it on
// first use.
func (c *Client) plan(name string) (*ServiceMethod, error) {
	entry := c.registry.lookup(name)
	if entry == nil {
		return nil, &ConfigurationError{Method: name, Err: errors.New("method not registered")}
	}
	plan, err := entry.resolve(func(desc *descriptor.Descriptor) (*ServiceMethod, error) {
		m, serr := synthesize(desc, c.chain, c.adapters)
		if serr != nil {
			return nil, serr
		}
		c.log.Debug("synthesized method plan", "method", desc.Name)
		return m, nil
	})
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigurationError{Method: name, Err: err}
	}
	return plan, nil
}

// NewCall binds a method to one argument set, producing a single-use call
// handle. Synthesis happens here on the method's first use.
func (c *Client) NewCall(name string, args Args) (*Call, error) {
	plan, err := c.plan(name)
	if err != nil {
		return nil, err
	}
	return &Call{client: c, plan: plan, args: args}, nil
}

// Execute is the synchronous convenience path: NewCall plus Execute.
func (c *Client) Execute(ctx context.Context, name string, args Args) (*Response, error) {
	call, err := c.NewCall(name, args)
	if err != nil {
		return nil, err
	}
	return call.Execute(ctx)
}

// Invoke is the adapter-applied entry point: it resolves the method, builds
// the call, and returns whatever the method's call adapter produces. That is
// the raw *Call for unwrapped methods, a future, a channel, or any custom
// handle a registered factory emits.
func (c *Client) Invoke(name string, args Args) (any, error) {
	call, err := c.NewCall(name, args)
	if err != nil {
		return nil, err
	}
	return call.plan.adapter.Adapt(call), nil
}

// newRequest builds the wire-level request for a plan, applying client-wide
// request decoration.
func (c *Client) newRequest(plan *ServiceMethod, args Args) (*transport.Request, error) {
	req, err := plan.buildRequest(c.base, args)
	if err != nil {
		return nil, err
	}
	if c.requestIDs && req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return req, nil
}

// Do executes a method synchronously and extracts the success body as T.
func Do[T any](ctx context.Context, c *Client, name string, args Args) (T, error) {
	var zero T
	resp, err := c.Execute(ctx, name, args)
	if err != nil {
		return zero, err
	}
	return Body[T](resp)
}
