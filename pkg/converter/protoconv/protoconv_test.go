package protoconv

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestFactoryMatchesOnlyProtoMessages(t *testing.T) {
	t.Parallel()

	f := New()

	assert.NotNil(t, f.ResponseConverter(reflect.TypeOf(&wrapperspb.StringValue{}), nil))
	assert.NotNil(t, f.RequestConverter(reflect.TypeOf(&wrapperspb.Int64Value{}), nil))

	assert.Nil(t, f.ResponseConverter(reflect.TypeOf(""), nil))
	assert.Nil(t, f.ResponseConverter(reflect.TypeOf(map[string]any{}), nil))
	assert.Nil(t, f.RequestConverter(reflect.TypeOf(struct{}{}), nil))
	// Value (non-pointer) message types are declined too.
	assert.Nil(t, f.ResponseConverter(reflect.TypeOf(wrapperspb.StringValue{}), nil))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	f := New()

	reqConv := f.RequestConverter(reflect.TypeOf(&wrapperspb.StringValue{}), nil)
	require.NotNil(t, reqConv)
	body, err := reqConv.Convert(wrapperspb.String("hello"))
	require.NoError(t, err)
	assert.Equal(t, "application/x-protobuf", body.ContentType)

	respConv := f.ResponseConverter(reflect.TypeOf(&wrapperspb.StringValue{}), nil)
	require.NotNil(t, respConv)
	got, err := respConv.Convert(bytes.NewReader(body.Data))
	require.NoError(t, err)

	msg, ok := got.(proto.Message)
	require.True(t, ok)
	assert.True(t, proto.Equal(wrapperspb.String("hello"), msg))
}

func TestDecodeFailure(t *testing.T) {
	t.Parallel()

	f := New()
	conv := f.ResponseConverter(reflect.TypeOf(&wrapperspb.StringValue{}), nil)
	_, err := conv.Convert(bytes.NewReader([]byte{0xff, 0xff, 0xff}))
	assert.Error(t, err)
}
