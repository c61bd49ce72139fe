package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeXML converts an XML document into a generic tree rooted at the
// document element's content.
//
// Attributes become "@name" fields. Elements holding only text become
// scalar strings. Elements with children or attributes become objects and
// are always wrapped in an array, as are repeated elements, so that any of
// them can serve as a row path segment. Text next to child elements is
// kept under "#text".
func DecodeXML(r io.Reader) (any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode xml: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			v, err := element(dec, start)
			if err != nil {
				return nil, fmt.Errorf("decode xml: %w", err)
			}
			if m, ok := v.(map[string]any); ok {
				return m, nil
			}
			return map[string]any{"#text": v}, nil
		}
	}
}

func element(dec *xml.Decoder, start xml.StartElement) (any, error) {
	fields := map[string]any{}
	for _, a := range start.Attr {
		fields["@"+a.Name.Local] = a.Value
	}

	var text strings.Builder
	children := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			children = true
			v, err := element(dec, t)
			if err != nil {
				return nil, err
			}
			add(fields, t.Name.Local, v)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if !children && len(start.Attr) == 0 {
				return s, nil
			}
			if s != "" {
				fields["#text"] = s
			}
			return fields, nil
		}
	}
}

func add(fields map[string]any, name string, v any) {
	_, isObject := v.(map[string]any)
	prev, ok := fields[name]
	if !ok {
		if isObject {
			fields[name] = []any{v}
		} else {
			fields[name] = v
		}
		return
	}
	if arr, ok := prev.([]any); ok {
		fields[name] = append(arr, v)
		return
	}
	fields[name] = []any{prev, v}
}
