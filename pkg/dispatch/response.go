package dispatch

import (
	"fmt"
	"net/http"
)

// Response is the immutable result of a completed call. It is tagged either
// success (decoded body, when the method declares one) or protocol error
// (buffered raw error body); never both. A non-2xx status is an expected
// outcome and therefore a Response value, not a Go error.
type Response struct {
	statusCode int
	status     string
	header     http.Header
	body       any
	errBody    []byte
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int { return r.statusCode }

// Status returns the HTTP status line.
func (r *Response) Status() string { return r.status }

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// IsSuccess reports whether the status code is in [200, 300).
func (r *Response) IsSuccess() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// Body returns the converted body for successful responses. It is nil for
// protocol errors, for 204/205 responses, and for methods that declare no
// body type.
func (r *Response) Body() any { return r.body }

// ErrorBody returns the raw error body for non-2xx responses. It is fully
// buffered before the transport connection is released, so it stays readable
// for the lifetime of the Response.
func (r *Response) ErrorBody() []byte { return r.errBody }

// String renders a short diagnostic form.
func (r *Response) String() string {
	if r.IsSuccess() {
		return fmt.Sprintf("Response(%d)", r.statusCode)
	}
	return fmt.Sprintf("Response(%d, %d error bytes)", r.statusCode, len(r.errBody))
}

// Body extracts a success body as T. It fails when the response is a
// protocol error, when there is no body, or when the declared type does not
// match T.
func Body[T any](r *Response) (T, error) {
	var zero T
	if !r.IsSuccess() {
		return zero, fmt.Errorf("response is not successful: %s", r.Status())
	}
	if r.body == nil {
		return zero, fmt.Errorf("response has no body")
	}
	v, ok := r.body.(T)
	if !ok {
		return zero, fmt.Errorf("response body is %T, not %T", r.body, zero)
	}
	return v, nil
}
