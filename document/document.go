// Package document decodes raw response bodies into generic trees:
// map[string]any for objects, []any for arrays, scalars otherwise.
package document

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/goccy/go-json"
)

// ErrShape is returned when a document's root is neither an object nor an array.
var ErrShape = errors.New("document root is neither object nor array")

// DecodeFunc decodes one body.
type DecodeFunc func(r io.Reader) (any, error)

type decoderRule struct {
	name  string
	match func(mediaType string) bool
	fn    DecodeFunc
}

// decoders is checked in order; the first match wins and JSON is the
// terminal fallback.
var decoders = []decoderRule{
	{"ndjson", mediaTypes("application/x-ndjson", "application/ndjson", "application/jsonl", "application/x-jsonlines"), DecodeNDJSON},
	{"json", suffixed("json", "application/json", "text/json"), DecodeJSON},
	{"xml", suffixed("xml", "application/xml", "text/xml"), DecodeXML},
}

func mediaTypes(types ...string) func(string) bool {
	return func(mt string) bool {
		for _, t := range types {
			if mt == t {
				return true
			}
		}
		return false
	}
}

// suffixed also matches structured syntax suffixes such as application/hal+json.
func suffixed(suffix string, types ...string) func(string) bool {
	exact := mediaTypes(types...)
	return func(mt string) bool {
		return exact(mt) || strings.HasSuffix(mt, "+"+suffix)
	}
}

// Decode picks a decoder for contentType and decodes r. The result is
// always an object or an array.
func Decode(contentType string, r io.Reader) (any, error) {
	mt := MediaType(contentType)
	fn := DecodeFunc(DecodeJSON)
	for _, d := range decoders {
		if d.match(mt) {
			fn = d.fn
			break
		}
	}
	doc, err := fn(r)
	if err != nil {
		return nil, err
	}
	switch doc.(type) {
	case map[string]any, []any:
		return doc, nil
	}
	return nil, fmt.Errorf("%w: decoded %T", ErrShape, doc)
}

// MediaType returns the lower-cased media type of a Content-Type value
// without parameters.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// DecodeJSON decodes a single JSON document. Numbers are kept as
// json.Number so integers wider than float64 precision survive.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

// DecodeNDJSON decodes newline-delimited JSON into an array, one element
// per non-empty line.
func DecodeNDJSON(r io.Reader) (any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	out := []any{}
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode ndjson line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	return out, nil
}
