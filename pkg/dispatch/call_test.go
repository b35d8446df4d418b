package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/transport"
)

// fakeTransport scripts transport behavior without sockets.
type fakeTransport struct {
	newCall func(ctx context.Context, req *transport.Request) transport.TransportCall
}

func (f *fakeTransport) NewCall(ctx context.Context, req *transport.Request) transport.TransportCall {
	return f.newCall(ctx, req)
}

type fakeCall struct {
	execute func() (*transport.RawResponse, error)
	enqueue func(done func(*transport.RawResponse, error))

	mu       sync.Mutex
	canceled bool
}

func (c *fakeCall) Execute() (*transport.RawResponse, error) {
	return c.execute()
}

func (c *fakeCall) Enqueue(done func(*transport.RawResponse, error)) {
	if c.enqueue != nil {
		c.enqueue(done)
		return
	}
	go func() { done(c.execute()) }()
}

func (c *fakeCall) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled = true
}

func (c *fakeCall) wasCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

func okRaw(body string) *transport.RawResponse {
	tb := newTrackedBody(body)
	return &transport.RawResponse{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       tb,
	}
}

func stringMethod(name string) *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name:    name,
		Method:  http.MethodGet,
		Path:    "/" + name,
		Returns: descriptor.ReturnType{Elem: reflect.TypeOf("")},
	}
}

func newTestClient(t *testing.T, tr transport.CallFactory, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithTransport(tr))
	c, err := New("http://api.test", opts...)
	require.NoError(t, err)
	require.NoError(t, c.Register(stringMethod("probe")))
	return c
}

func TestCallSingleUse(t *testing.T) {
	t.Parallel()

	t.Run("second execute fails fast", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
			return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("hi"), nil }}
		}}
		call, err := newTestClient(t, tr).NewCall("probe", nil)
		require.NoError(t, err)

		_, err = call.Execute(context.Background())
		require.NoError(t, err)

		_, err = call.Execute(context.Background())
		assert.ErrorIs(t, err, ErrAlreadyExecuted)
	})

	t.Run("enqueue after execute fails fast", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
			return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("hi"), nil }}
		}}
		call, err := newTestClient(t, tr).NewCall("probe", nil)
		require.NoError(t, err)

		_, err = call.Execute(context.Background())
		require.NoError(t, err)

		failed := make(chan error, 1)
		call.Enqueue(Callback{OnFailure: func(_ *Call, err error) { failed <- err }})
		select {
		case err := <-failed:
			assert.ErrorIs(t, err, ErrAlreadyExecuted)
		case <-time.After(time.Second):
			t.Fatal("no failure delivered")
		}
	})

	t.Run("execute after cancel fails with ErrCanceled", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
			return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("hi"), nil }}
		}}
		call, err := newTestClient(t, tr).NewCall("probe", nil)
		require.NoError(t, err)

		call.Cancel()
		_, err = call.Execute(context.Background())
		assert.ErrorIs(t, err, ErrCanceled)
	})
}

func TestCallTransportContract(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return nil
	}}
	call, err := newTestClient(t, tr).NewCall("probe", nil)
	require.NoError(t, err)

	_, err = call.Execute(context.Background())
	assert.ErrorIs(t, err, ErrTransportContract)
}

func TestCallTransportFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return nil, boom }}
	}}
	call, err := newTestClient(t, tr).NewCall("probe", nil)
	require.NoError(t, err)

	_, err = call.Execute(context.Background())
	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
	assert.ErrorIs(t, err, boom)
}

func TestCancelSuppressesCompletion(t *testing.T) {
	t.Parallel()

	t.Run("cancel before transport completion", func(t *testing.T) {
		t.Parallel()
		var done func(*transport.RawResponse, error)
		started := make(chan struct{})
		fc := &fakeCall{}
		fc.enqueue = func(d func(*transport.RawResponse, error)) {
			done = d
			close(started)
		}
		tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall { return fc }}
		call, err := newTestClient(t, tr).NewCall("probe", nil)
		require.NoError(t, err)

		fired := make(chan struct{}, 2)
		call.Enqueue(Callback{
			OnResponse: func(*Call, *Response) { fired <- struct{}{} },
			OnFailure:  func(*Call, error) { fired <- struct{}{} },
		})
		<-started

		call.Cancel()
		assert.True(t, fc.wasCanceled(), "cancel propagates to the transport")

		// Late completion arrives after cancellation: it must be swallowed
		// and the body released.
		body := newTrackedBody("late")
		done(&transport.RawResponse{StatusCode: 200, Body: body}, nil)

		select {
		case <-fired:
			t.Fatal("callback fired after cancellation")
		case <-time.After(100 * time.Millisecond):
		}
		assert.Equal(t, int32(1), body.closes.Load())
	})

	t.Run("cancel after completion is a no-op", func(t *testing.T) {
		t.Parallel()
		tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
			return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("done"), nil }}
		}}
		call, err := newTestClient(t, tr).NewCall("probe", nil)
		require.NoError(t, err)

		resp, err := call.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "done", resp.Body())

		call.Cancel()
		assert.False(t, call.IsCanceled(), "cancel after completion does not mark the call canceled")
	})
}

func TestEnqueueDeliversThroughCallbackExecutor(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	exec := transport.ExecutorFunc(func(task func()) {
		record("executor")
		task()
	})
	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("async"), nil }}
	}}
	client := newTestClient(t, tr, WithCallbackExecutor(exec))

	call, err := client.NewCall("probe", nil)
	require.NoError(t, err)

	done := make(chan struct{})
	call.Enqueue(Callback{
		OnResponse: func(_ *Call, resp *Response) {
			record("callback")
			assert.Equal(t, "async", resp.Body())
			close(done)
		},
		OnFailure: func(_ *Call, err error) {
			t.Errorf("unexpected failure: %v", err)
			close(done)
		},
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"executor", "callback"}, order)
}

// rejectingFactory claims struct types but always fails conversion, to
// exercise the per-call conversion failure path.
type rejectingFactory struct {
	converter.NopFactory
}

func (rejectingFactory) ResponseConverter(t reflect.Type, _ descriptor.Annotations) converter.ResponseConverter {
	if t.Kind() != reflect.Struct {
		return nil
	}
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		_, _ = io.Copy(io.Discard, r)
		return nil, errors.New("malformed payload")
	})
}

func TestEnqueueReportsConversionFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("body"), nil }}
	}}
	client := newTestClient(t, tr, WithConverters(rejectingFactory{}))

	type payload struct{ Name string }
	require.NoError(t, client.Register(&descriptor.Descriptor{
		Name:    "broken",
		Method:  http.MethodGet,
		Path:    "/broken",
		Returns: descriptor.ReturnType{Elem: reflect.TypeOf(payload{})},
	}))

	call, err := client.NewCall("broken", nil)
	require.NoError(t, err)

	got := make(chan error, 1)
	call.Enqueue(Callback{
		OnResponse: func(*Call, *Response) { got <- nil },
		OnFailure:  func(_ *Call, err error) { got <- err },
	})
	select {
	case err := <-got:
		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome")
	}
}
