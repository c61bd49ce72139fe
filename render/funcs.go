package render

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/goccy/go-json"
)

var funcs = template.FuncMap{
	"json":  toJSON,
	"join":  join,
	"query": url.QueryEscape,
	"form":  form,
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// join accepts []string or []any.
func join(sep string, v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, sep)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, sep)
	}
	return fmt.Sprint(v)
}

// form encodes a parameter map as a query string sorted by key.
func form(params map[string]any) string {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}
	return q.Encode()
}
