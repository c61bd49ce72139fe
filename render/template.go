// Package render builds page requests from text/template definitions.
package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/restport/fetch"
	"github.com/hugr-lab/restport/pushdown"
	"github.com/hugr-lab/restport/transport"
)

// Spec declares the request templates of one table.
type Spec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    string
}

// Template renders page requests. Templates are parsed once; a Template is
// safe for concurrent use.
//
// Templates see the page context as:
//
//	.Offset .Limit .Page .StartPage  int
//	.Table                           table name
//	.Columns                         []string, source keys of projected columns
//	.DNF .CNF                        [][]Criterion{Field, Op, Value}
//	.Params                          map[string]any, equality values by field
type Template struct {
	method  string
	path    *template.Template
	headers map[string]*template.Template
	body    *template.Template
}

// New parses the templates of spec.
func New(spec Spec) (*Template, error) {
	t := &Template{
		method:  strings.ToUpper(strings.TrimSpace(spec.Method)),
		headers: make(map[string]*template.Template, len(spec.Headers)),
	}
	if t.method == "" {
		t.method = http.MethodGet
	}

	var err error
	if t.path, err = parse("path", spec.Path); err != nil {
		return nil, err
	}
	for name, src := range spec.Headers {
		if t.headers[name], err = parse("header "+name, src); err != nil {
			return nil, err
		}
	}
	if spec.Body != "" {
		if t.body, err = parse("body", spec.Body); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parse(name, src string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return tpl, nil
}

// Criterion is the template view of one filter condition.
type Criterion struct {
	Field string
	Op    string
	Value any
}

type pageData struct {
	Offset    int
	Limit     int
	Page      int
	StartPage int
	Table     string
	Columns   []string
	DNF       [][]Criterion
	CNF       [][]Criterion
	Params    map[string]any
}

// Render implements fetch.Renderer.
func (t *Template) Render(pc fetch.PageContext) (*transport.Request, error) {
	data, err := prepareContext(pc)
	if err != nil {
		return nil, err
	}

	path, err := execute(t.path, data)
	if err != nil {
		return nil, err
	}
	req := &transport.Request{
		Method: t.method,
		Path:   strings.TrimSpace(path),
		Header: make(http.Header, len(t.headers)),
	}
	for _, name := range slices.Sorted(maps.Keys(t.headers)) {
		v, err := execute(t.headers[name], data)
		if err != nil {
			return nil, err
		}
		if v = strings.TrimSpace(v); v != "" {
			req.Header.Set(name, v)
		}
	}
	if t.body != nil {
		body, err := execute(t.body, data)
		if err != nil {
			return nil, err
		}
		req.Body = []byte(body)
	}
	return req, nil
}

func execute(tpl *template.Template, data *pageData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

// ContextError is returned for a context value the templates cannot use.
type ContextError struct {
	Key   string
	Value any
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("render: unsupported value %T for %s", e.Value, e.Key)
}

func prepareContext(pc fetch.PageContext) (*pageData, error) {
	d := &pageData{
		Offset:    pc.Offset,
		Limit:     pc.Limit,
		Page:      pc.Page,
		StartPage: pc.StartPage,
		Columns:   pc.Columns,
		Params:    make(map[string]any, len(pc.Params)),
	}
	if pc.Table != nil {
		d.Table = pc.Table.Name
	}
	for k, v := range pc.Params {
		p, err := prepare(v)
		if err != nil {
			return nil, &ContextError{Key: "param " + k, Value: v}
		}
		d.Params[k] = p
	}
	var err error
	if d.DNF, err = prepareGroups("DNF", pc.DNF); err != nil {
		return nil, err
	}
	if d.CNF, err = prepareGroups("CNF", pc.CNF); err != nil {
		return nil, err
	}
	return d, nil
}

func prepareGroups(form string, groups [][]pushdown.Criterion) ([][]Criterion, error) {
	out := make([][]Criterion, 0, len(groups))
	for _, g := range groups {
		cg := make([]Criterion, 0, len(g))
		for _, c := range g {
			v, err := prepare(c.Value)
			if err != nil {
				return nil, &ContextError{Key: form + " field " + c.Field, Value: c.Value}
			}
			cg = append(cg, Criterion{Field: c.Field, Op: string(c.Op), Value: v})
		}
		out = append(out, cg)
	}
	return out, nil
}

var errUnsupported = errors.New("unsupported value")

// prepare converts a value to a template-friendly scalar.
func prepare(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			p, err := prepare(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}
	return nil, errUnsupported
}
