// Package adapter provides call adapter factories for the wrapper types the
// engine supports out of the box: futures and channels. Both dispatch the
// call immediately on adaptation; the returned handle only observes the
// outcome.
package adapter

import (
	"context"
	"reflect"
	"sync"

	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/dispatch"
)

// Wrapper names claimed by this package's factories.
const (
	WrapperFuture  = "future"
	WrapperChannel = "channel"
)

// Result pairs a completed response with its failure, exactly one of which
// is set.
type Result struct {
	Response *dispatch.Response
	Err      error
}

// Futures returns the adapter factory for methods declared with the
// "future" wrapper.
func Futures() dispatch.AdapterFactory {
	return futureFactory{}
}

type futureFactory struct{}

func (futureFactory) Get(rt descriptor.ReturnType, _ descriptor.Annotations) dispatch.CallAdapter {
	if rt.Wrapper != WrapperFuture {
		return nil
	}
	return futureAdapter{elem: rt.Elem}
}

type futureAdapter struct {
	elem reflect.Type
}

func (a futureAdapter) ResponseType() reflect.Type { return a.elem }

func (a futureAdapter) Adapt(call *dispatch.Call) any {
	f := &Future{call: call, done: make(chan struct{})}
	call.Enqueue(dispatch.Callback{
		OnResponse: func(_ *dispatch.Call, resp *dispatch.Response) {
			f.resolve(Result{Response: resp})
		},
		OnFailure: func(_ *dispatch.Call, err error) {
			f.resolve(Result{Err: err})
		},
	})
	return f
}

// Future is a one-shot handle to an in-flight call. The exchange is already
// running when the caller receives it.
type Future struct {
	call *dispatch.Call
	done chan struct{}
	once sync.Once
	res  Result
}

func (f *Future) resolve(res Result) {
	f.once.Do(func() {
		f.res = res
		close(f.done)
	})
}

// Get blocks until the call resolves or ctx ends.
func (f *Future) Get(ctx context.Context) (*dispatch.Response, error) {
	select {
	case <-f.done:
		return f.res.Response, f.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts the underlying call and resolves the future with
// dispatch.ErrCanceled. Completion callbacks losing the race are suppressed
// by the call itself, so at most one outcome is ever stored.
func (f *Future) Cancel() {
	f.call.Cancel()
	f.resolve(Result{Err: dispatch.ErrCanceled})
}

// Channels returns the adapter factory for methods declared with the
// "channel" wrapper. The adapted value is a receive-only channel carrying
// exactly one Result.
func Channels() dispatch.AdapterFactory {
	return channelFactory{}
}

type channelFactory struct{}

func (channelFactory) Get(rt descriptor.ReturnType, _ descriptor.Annotations) dispatch.CallAdapter {
	if rt.Wrapper != WrapperChannel {
		return nil
	}
	return channelAdapter{elem: rt.Elem}
}

type channelAdapter struct {
	elem reflect.Type
}

func (a channelAdapter) ResponseType() reflect.Type { return a.elem }

func (a channelAdapter) Adapt(call *dispatch.Call) any {
	ch := make(chan Result, 1)
	call.Enqueue(dispatch.Callback{
		OnResponse: func(_ *dispatch.Call, resp *dispatch.Response) {
			ch <- Result{Response: resp}
			close(ch)
		},
		OnFailure: func(_ *dispatch.Call, err error) {
			ch <- Result{Err: err}
			close(ch)
		},
	})
	return (<-chan Result)(ch)
}
