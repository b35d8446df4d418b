package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/typedrest/typedrest/pkg/transport"
)

// callState tracks the single-use lifecycle of a Call.
type callState int

const (
	stateCreated callState = iota
	stateInFlight
	stateCompleted
	stateCanceled
)

// Callback receives the outcome of an asynchronous call. Exactly one of
// OnResponse or OnFailure fires, at most once, unless the call was canceled
// first, in which case neither fires.
type Callback struct {
	OnResponse func(call *Call, resp *Response)
	OnFailure  func(call *Call, err error)
}

// Call is a single-use handle binding one execution plan to one argument
// set. Execute and Enqueue may be used at most once total across the
// lifetime of the instance; a second attempt in either mode fails fast with
// ErrAlreadyExecuted and has no side effects. The underlying transport
// resource is owned by the Call and released exactly once on completion,
// cancellation, or error.
type Call struct {
	client *Client
	plan   *ServiceMethod
	args   Args

	mu       sync.Mutex
	state    callState
	canceled bool
	raw      transport.TransportCall
}

// Method returns the name of the declared method this call dispatches.
func (c *Call) Method() string { return c.plan.desc.Name }

// begin performs the single-use and cancellation guards and transitions the
// call to in-flight.
func (c *Call) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		return ErrCanceled
	}
	if c.state != stateCreated {
		return ErrAlreadyExecuted
	}
	c.state = stateInFlight
	return nil
}

// attach records the transport call so Cancel can reach it. If the call was
// canceled between begin and attach, the transport resource is released
// immediately and attach reports the cancellation.
func (c *Call) attach(raw transport.TransportCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		raw.Cancel()
		return ErrCanceled
	}
	c.raw = raw
	return nil
}

// complete transitions to completed unless the call was canceled first.
// It reports whether the outcome may be observed: after a cancellation the
// completion is suppressed and never delivered.
func (c *Call) complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		return false
	}
	c.state = stateCompleted
	return true
}

// Execute dispatches the call synchronously, blocking until the transport
// produces a response or fails. The context bounds the whole exchange.
func (c *Call) Execute(ctx context.Context) (*Response, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	req, err := c.client.newRequest(c.plan, c.args)
	if err != nil {
		c.complete()
		return nil, err
	}

	raw := c.client.transport.NewCall(ctx, req)
	if raw == nil {
		c.complete()
		return nil, fmt.Errorf("%w: NewCall returned nil", ErrTransportContract)
	}
	if err := c.attach(raw); err != nil {
		return nil, err
	}

	rawResp, err := raw.Execute()
	observed := c.complete()
	if err != nil {
		if !observed {
			return nil, ErrCanceled
		}
		return nil, &TransportError{Err: err}
	}
	if !observed {
		// Canceled while the response was in flight: release and suppress.
		rawResp.Body.Close()
		return nil, ErrCanceled
	}

	resp, err := classify(rawResp, c.plan.respConv, c.plan)
	if err == nil && !resp.IsSuccess() {
		c.logProtocolError(resp)
	}
	return resp, err
}

// Enqueue dispatches the call asynchronously. The transport invokes its
// completion on a goroutine of its choosing; classification and conversion
// run there, and the finished outcome is handed to the client's callback
// executor (or delivered inline when none is configured).
func (c *Call) Enqueue(cb Callback) {
	if err := c.begin(); err != nil {
		c.deliverFailure(cb, err)
		return
	}

	req, err := c.client.newRequest(c.plan, c.args)
	if err != nil {
		c.complete()
		c.deliverFailure(cb, err)
		return
	}

	raw := c.client.transport.NewCall(context.Background(), req)
	if raw == nil {
		c.complete()
		c.deliverFailure(cb, fmt.Errorf("%w: NewCall returned nil", ErrTransportContract))
		return
	}
	if err := c.attach(raw); err != nil {
		return // canceled before dispatch: suppress all notification
	}

	raw.Enqueue(func(rawResp *transport.RawResponse, err error) {
		observed := c.complete()
		if !observed {
			if rawResp != nil {
				rawResp.Body.Close()
			}
			return
		}
		if err != nil {
			c.deliverFailure(cb, &TransportError{Err: err})
			return
		}
		resp, cerr := classify(rawResp, c.plan.respConv, c.plan)
		if cerr != nil {
			c.deliverFailure(cb, cerr)
			return
		}
		if !resp.IsSuccess() {
			c.logProtocolError(resp)
		}
		c.deliver(func() {
			if cb.OnResponse != nil {
				cb.OnResponse(c, resp)
			}
		})
	})
}

// Cancel requests best-effort cancellation. Before completion it releases
// the transport resource and suppresses any later success or failure
// notification; after completion it has no effect. Racing with an in-flight
// completion, at most one outcome is ever observed.
func (c *Call) Cancel() {
	c.mu.Lock()
	if c.canceled || c.state == stateCompleted {
		c.mu.Unlock()
		return
	}
	c.canceled = true
	c.state = stateCanceled
	raw := c.raw
	c.mu.Unlock()

	if raw != nil {
		raw.Cancel()
	}
}

// IsCanceled reports whether Cancel won the race against completion.
func (c *Call) IsCanceled() bool { return c.isCanceled() }

func (c *Call) isCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

func (c *Call) deliverFailure(cb Callback, err error) {
	c.deliver(func() {
		if cb.OnFailure != nil {
			cb.OnFailure(c, err)
		}
	})
}

// deliver routes an outcome through the configured callback executor so the
// observing goroutine is decoupled from the transport's.
func (c *Call) deliver(task func()) {
	if exec := c.client.callbackExec; exec != nil {
		exec.Execute(task)
		return
	}
	task()
}

// maxLoggedBody caps how much of a buffered error body is echoed into the
// debug log.
const maxLoggedBody = 10 * 1024

func (c *Call) logProtocolError(resp *Response) {
	body := resp.ErrorBody()
	preview := string(body)
	if len(body) > maxLoggedBody {
		preview = string(body[:maxLoggedBody]) + "...(truncated)"
	}
	c.client.log.Debug("protocol error response",
		"method", c.plan.desc.Name,
		"status", resp.StatusCode(),
		"body", preview)
}
