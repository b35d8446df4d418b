package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/typedrest/typedrest/pkg/logging"
)

// HTTPCallFactory is the default CallFactory, backed by a *http.Client.
type HTTPCallFactory struct {
	client *http.Client
	log    *slog.Logger
}

// HTTPOption configures the factory.
type HTTPOption func(*HTTPCallFactory)

// WithClient supplies the underlying *http.Client. Connection pooling,
// timeouts, TLS, proxies, and redirect policy are all configured there.
func WithClient(client *http.Client) HTTPOption {
	return func(f *HTTPCallFactory) {
		if client != nil {
			f.client = client
		}
	}
}

// WithHTTPLogger sets the operational logger for the factory.
func WithHTTPLogger(log *slog.Logger) HTTPOption {
	return func(f *HTTPCallFactory) {
		if log != nil {
			f.log = log
		}
	}
}

// NewHTTPCallFactory creates an HTTP transport with a 30 second default
// timeout.
func NewHTTPCallFactory(opts ...HTTPOption) *HTTPCallFactory {
	f := &HTTPCallFactory{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewCall binds req to a cancelable HTTP exchange.
func (f *HTTPCallFactory) NewCall(ctx context.Context, req *Request) TransportCall {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &httpCall{
		factory: f,
		ctx:     ctx,
		cancel:  cancel,
		req:     req,
	}
}

type httpCall struct {
	factory *HTTPCallFactory
	ctx     context.Context
	cancel  context.CancelFunc
	req     *Request

	mu       sync.Mutex
	canceled bool
}

func (c *httpCall) Execute() (*RawResponse, error) {
	var body *bytes.Reader
	if c.req.Body != nil {
		body = bytes.NewReader(c.req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(c.ctx, c.req.Method, c.req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range c.req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.factory.client.Do(httpReq)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.factory.log.Debug("request completed",
		"method", c.req.Method,
		"url", c.req.URL,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &RawResponse{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          &cancelOnClose{ReadCloser: resp.Body, cancel: c.cancel},
	}, nil
}

// cancelOnClose ties the call's derived context to the response body, so
// closing the body also releases the context.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (c *httpCall) Enqueue(done func(*RawResponse, error)) {
	go func() {
		done(c.Execute())
	}()
}

func (c *httpCall) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		return
	}
	c.canceled = true
	c.cancel()
}
