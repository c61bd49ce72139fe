package document

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONUsesNumbers(t *testing.T) {
	doc, err := Decode("application/json; charset=utf-8", strings.NewReader(`{"id": 9007199254740993, "items": [1]}`))
	require.NoError(t, err)
	m := doc.(map[string]any)
	assert.Equal(t, json.Number("9007199254740993"), m["id"])
}

func TestDecodeSuffixAndFallback(t *testing.T) {
	for _, ct := range []string{"application/hal+json", "", "text/plain", "garbage;;"} {
		doc, err := Decode(ct, strings.NewReader(`[{"a": 1}]`))
		require.NoError(t, err, ct)
		assert.Len(t, doc, 1, ct)
	}
}

func TestDecodeShape(t *testing.T) {
	_, err := Decode("application/json", strings.NewReader(`"just a string"`))
	require.ErrorIs(t, err, ErrShape)

	_, err = Decode("application/json", strings.NewReader(`<html>`))
	require.Error(t, err)
}

func TestDecodeNDJSON(t *testing.T) {
	body := "{\"id\": 1}\n\n{\"id\": 2}\n"
	doc, err := Decode("application/x-ndjson", strings.NewReader(body))
	require.NoError(t, err)
	arr := doc.([]any)
	require.Len(t, arr, 2)
	assert.Equal(t, json.Number("2"), arr[1].(map[string]any)["id"])

	_, err = Decode("application/x-ndjson", strings.NewReader("{\"id\": 1}\n{oops}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecodeXML(t *testing.T) {
	body := `<?xml version="1.0"?>
<response status="ok">
  <total>2</total>
  <meta><page>1</page></meta>
  <item id="1"><name>a</name></item>
  <item id="2"><name>b</name></item>
  <tag>x</tag>
  <tag>y</tag>
</response>`
	doc, err := Decode("application/xml", strings.NewReader(body))
	require.NoError(t, err)
	root := doc.(map[string]any)

	assert.Equal(t, "ok", root["@status"])
	assert.Equal(t, "2", root["total"])
	assert.Equal(t, []any{"x", "y"}, root["tag"])

	meta := root["meta"].([]any)
	require.Len(t, meta, 1, "complex singletons become arrays")
	assert.Equal(t, "1", meta[0].(map[string]any)["page"])

	items := root["item"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"@id": "2", "name": "b"}, items[1])
}

func TestDecodeXMLMixedText(t *testing.T) {
	doc, err := Decode("text/xml", strings.NewReader(`<a><b lang="en">hello</b></a>`))
	require.NoError(t, err)
	b := doc.(map[string]any)["b"].([]any)
	assert.Equal(t, map[string]any{"@lang": "en", "#text": "hello"}, b[0])
}

func TestDecodeXMLTruncated(t *testing.T) {
	_, err := Decode("application/xml", strings.NewReader(`<a><b>`))
	require.Error(t, err)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/json", MediaType("Application/JSON; charset=utf-8"))
	assert.Equal(t, "", MediaType(""))
}
