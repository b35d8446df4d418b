package xmlconv

import (
	"encoding/xml"
	"reflect"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedrest/typedrest/pkg/descriptor"
)

type item struct {
	XMLName xml.Name `xml:"item"`
	SKU     string   `xml:"sku"`
	Qty     int      `xml:"qty"`
}

var xmlAnn = descriptor.Annotations{AnnotationContentType: "application/xml"}

func TestStructConversion(t *testing.T) {
	t.Parallel()

	f := New()

	t.Run("requires xml content-type annotation", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, f.ResponseConverter(reflect.TypeOf(item{}), nil))
		assert.Nil(t, f.ResponseConverter(reflect.TypeOf(item{}), descriptor.Annotations{AnnotationContentType: "application/json"}))
		assert.NotNil(t, f.ResponseConverter(reflect.TypeOf(item{}), xmlAnn))
	})

	t.Run("decodes struct", func(t *testing.T) {
		t.Parallel()
		conv := f.ResponseConverter(reflect.TypeOf(item{}), xmlAnn)
		require.NotNil(t, conv)
		got, err := conv.Convert(strings.NewReader(`<item><sku>A-1</sku><qty>4</qty></item>`))
		require.NoError(t, err)
		assert.Equal(t, "A-1", got.(item).SKU)
		assert.Equal(t, 4, got.(item).Qty)
	})

	t.Run("encodes struct", func(t *testing.T) {
		t.Parallel()
		conv := f.RequestConverter(reflect.TypeOf(item{}), xmlAnn)
		require.NotNil(t, conv)
		body, err := conv.Convert(item{SKU: "A-1", Qty: 4})
		require.NoError(t, err)
		assert.Equal(t, "application/xml", body.ContentType)
		assert.Contains(t, string(body.Data), "<sku>A-1</sku>")
	})
}

func TestDocumentConversion(t *testing.T) {
	t.Parallel()

	f := New()
	docType := reflect.TypeOf((*etree.Document)(nil))

	t.Run("documents claimed without annotations", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, f.ResponseConverter(docType, nil))
		assert.NotNil(t, f.RequestConverter(docType, nil))
	})

	t.Run("parses response into document", func(t *testing.T) {
		t.Parallel()
		conv := f.ResponseConverter(docType, nil)
		got, err := conv.Convert(strings.NewReader(`<feed><entry id="1"/><entry id="2"/></feed>`))
		require.NoError(t, err)

		doc, ok := got.(*etree.Document)
		require.True(t, ok)
		assert.Len(t, doc.FindElements("//entry"), 2)
	})

	t.Run("serializes document request", func(t *testing.T) {
		t.Parallel()
		doc := etree.NewDocument()
		root := doc.CreateElement("ping")
		root.CreateAttr("seq", "7")

		conv := f.RequestConverter(docType, nil)
		body, err := conv.Convert(doc)
		require.NoError(t, err)
		assert.Contains(t, string(body.Data), `<ping seq="7"/>`)
	})

	t.Run("malformed document fails", func(t *testing.T) {
		t.Parallel()
		conv := f.ResponseConverter(docType, nil)
		_, err := conv.Convert(strings.NewReader(`<unclosed>`))
		assert.Error(t, err)
	})
}
