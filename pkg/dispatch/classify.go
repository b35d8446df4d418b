package dispatch

import (
	"fmt"
	"io"
	"net/http"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/transport"
)

// classify turns a raw transport response into a typed Response, applying
// HTTP status semantics:
//
//   - status in [200, 300) runs the body converter, except 204 and 205
//     which are defined to carry no body and never invoke it;
//   - any other status is a protocol error whose raw body is buffered in
//     full before the transport resource is released, so callers may
//     inspect it after the connection has been recycled.
//
// The raw body is closed exactly once on every path.
func classify(raw *transport.RawResponse, conv converter.ResponseConverter, plan *ServiceMethod) (*Response, error) {
	resp := &Response{
		statusCode: raw.StatusCode,
		status:     raw.Status,
		header:     raw.Header,
	}

	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		errBody, err := io.ReadAll(raw.Body)
		raw.Body.Close()
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("failed to buffer error body: %w", err)}
		}
		resp.errBody = errBody
		return resp, nil
	}

	// 204 and 205 carry no body: don't touch the converter.
	if raw.StatusCode == http.StatusNoContent || raw.StatusCode == http.StatusResetContent {
		raw.Body.Close()
		return resp, nil
	}

	if conv == nil {
		// Method declares no body type. Drain so the connection can be
		// reused, then discard.
		_, _ = io.Copy(io.Discard, raw.Body)
		raw.Body.Close()
		return resp, nil
	}

	body, err := conv.Convert(raw.Body)
	raw.Body.Close()
	if err != nil {
		return nil, &ConversionError{Type: plan.ResponseType(), Err: err}
	}
	resp.body = body
	return resp, nil
}
