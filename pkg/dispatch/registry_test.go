package dispatch

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedrest/typedrest/pkg/converter"
	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/transport"
)

// synthCountingFactory counts resolutions, which happen exactly once per
// method synthesis.
type synthCountingFactory struct {
	converter.NopFactory
	hits atomic.Int32
}

func (f *synthCountingFactory) ResponseConverter(t reflect.Type, _ descriptor.Annotations) converter.ResponseConverter {
	if t != reflect.TypeOf("") {
		return nil
	}
	f.hits.Add(1)
	return converter.ResponseFunc(func(r io.Reader) (any, error) {
		b, err := io.ReadAll(r)
		return string(b), err
	})
}

func TestConcurrentFirstUseSynthesizesOnce(t *testing.T) {
	t.Parallel()

	counting := &synthCountingFactory{}
	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("shared"), nil }}
	}}
	client, err := New("http://api.test", WithTransport(tr), WithConverters(counting))
	require.NoError(t, err)
	require.NoError(t, client.Register(stringMethod("hot")))

	const n = 16
	var wg sync.WaitGroup
	results := make([]*Response, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Execute(context.Background(), "hot", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), counting.hits.Load(), "plan synthesized exactly once")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Body(), "caller %d observes the shared plan's behavior", i)
	}
}

func TestUnrelatedMethodsDoNotShareSynthesisLock(t *testing.T) {
	t.Parallel()

	// A synthesis stuck on method A must not block method B. The blocking
	// factory stalls only for A's response type.
	type slowType struct{ _ int }
	release := make(chan struct{})
	blocking := &gateFactory{match: reflect.TypeOf(slowType{}), gate: release}

	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw("fast"), nil }}
	}}
	client, err := New("http://api.test", WithTransport(tr), WithConverters(blocking))
	require.NoError(t, err)
	require.NoError(t, client.Register(
		&descriptor.Descriptor{
			Name:    "slow",
			Method:  http.MethodGet,
			Path:    "/slow",
			Returns: descriptor.ReturnType{Elem: reflect.TypeOf(slowType{})},
		},
		stringMethod("fast"),
	))

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = client.Execute(context.Background(), "slow", nil)
	}()
	<-started

	// The fast method resolves while the slow one is still synthesizing.
	resp, err := client.Execute(context.Background(), "fast", nil)
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Body())

	close(release)
}

// gateFactory blocks resolution of one type until its gate opens.
type gateFactory struct {
	converter.NopFactory
	match reflect.Type
	gate  chan struct{}
}

func (f *gateFactory) ResponseConverter(t reflect.Type, _ descriptor.Annotations) converter.ResponseConverter {
	if t != f.match {
		return nil
	}
	<-f.gate
	return converter.ResponseFunc(func(r io.Reader) (any, error) { return slurp(r) })
}

func slurp(r io.Reader) (any, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

func TestConfigurationErrorIsCachedPerMethod(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{newCall: func(context.Context, *transport.Request) transport.TransportCall {
		return &fakeCall{execute: func() (*transport.RawResponse, error) { return okRaw(""), nil }}
	}}
	client, err := New("http://api.test", WithTransport(tr))
	require.NoError(t, err)

	type unsupported struct{ X complex128 }
	require.NoError(t, client.Register(&descriptor.Descriptor{
		Name:    "nope",
		Method:  http.MethodGet,
		Path:    "/nope",
		Returns: descriptor.ReturnType{Elem: reflect.TypeOf(unsupported{})},
	}))

	_, err1 := client.Execute(context.Background(), "nope", nil)
	_, err2 := client.Execute(context.Background(), "nope", nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err1, &cfgErr)
	var ncErr *converter.NoConverterError
	assert.ErrorAs(t, err1, &ncErr)
	assert.Equal(t, err1.Error(), err2.Error(), "same cached configuration error on every call")
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	t.Parallel()

	client, err := New("http://api.test")
	require.NoError(t, err)
	require.NoError(t, client.Register(stringMethod("dup")))

	err = client.Register(stringMethod("dup"))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "already registered")
}
