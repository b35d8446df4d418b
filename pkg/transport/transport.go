// Package transport defines the boundary between the dispatch engine and the
// collaborator that performs actual network I/O, plus a default
// implementation backed by net/http.
//
// The engine consumes transports only through the CallFactory capability: a
// pre-buffered Request goes in, a single-use TransportCall comes out. The
// engine never retries, pools, or redirects; all of that belongs to the
// transport.
package transport

import (
	"context"
	"io"
	"net/http"
)

// Request is a wire-level request: verb, absolute URL, headers, and a fully
// buffered body. It carries no transport policy.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// RawResponse is the transport's view of a completed exchange. Body streams
// from the underlying connection: the consumer must fully read or close it
// exactly once, after which the connection may be recycled.
type RawResponse struct {
	StatusCode    int
	Status        string
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// TransportCall is a single in-flight request owned by the transport.
// Execute and Enqueue are mutually exclusive and single-use; the dispatch
// engine enforces that, so implementations may assume it.
type TransportCall interface {
	// Execute performs the request, blocking until the response headers
	// arrive or the exchange fails.
	Execute() (*RawResponse, error)

	// Enqueue performs the request without blocking and invokes done on a
	// transport-chosen goroutine with exactly one of a response or an error.
	Enqueue(done func(*RawResponse, error))

	// Cancel aborts the exchange if it has not completed. Safe to call at
	// any time, from any goroutine, more than once.
	Cancel()
}

// CallFactory turns requests into transport calls. Implementations must be
// safe for concurrent use.
type CallFactory interface {
	NewCall(ctx context.Context, req *Request) TransportCall
}

// CallbackExecutor chooses where async completion notifications run,
// decoupling the goroutine that received the network event from the one that
// observes application-level results. A nil executor means "stay on the
// transport's goroutine".
type CallbackExecutor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to a CallbackExecutor.
type ExecutorFunc func(task func())

// Execute calls f.
func (f ExecutorFunc) Execute(task func()) { f(task) }

// SerialExecutor delivers tasks one at a time, in submission order, on a
// single dedicated goroutine. It is the closest Go analog to a UI-thread
// dispatch target.
type SerialExecutor struct {
	tasks chan func()
	done  chan struct{}
}

// NewSerialExecutor starts the delivery goroutine.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		for task := range e.tasks {
			task()
		}
	}()
	return e
}

// Execute submits a task. It blocks only when the queue is full.
func (e *SerialExecutor) Execute(task func()) {
	e.tasks <- task
}

// Close stops accepting tasks and waits for queued ones to finish.
func (e *SerialExecutor) Close() {
	close(e.tasks)
	<-e.done
}
