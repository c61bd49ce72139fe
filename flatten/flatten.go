// Package flatten unrolls nested response documents into flat rows, one per
// element of the deepest repeating collection.
package flatten

import (
	"iter"
	"maps"
	"slices"

	"github.com/hugr-lab/restport/mapping"
)

// Row is a flattened record keyed by source key (see mapping.SourceKey).
type Row map[string]any

// Flatten yields one row per element reached through path. Documents are
// the generic trees produced by the document decoders: map[string]any for
// objects, []any for arrays.
//
// Each row carries the scalar fields of the root object and of every
// element on the way down. A nested field wins over an ancestor field with
// the same key, although source keys only collide for malformed paths.
func Flatten(doc any, path []string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if len(path) == 0 {
			switch v := doc.(type) {
			case map[string]any:
				yield(merge(&frame{fields: scalars(v, "")}))
			case []any:
				for _, rec := range objects(v) {
					if !yield(merge(&frame{fields: scalars(rec, "")})) {
						return
					}
				}
			}
			return
		}

		w := walker{path: path, yield: yield}
		// A bare array stands for the collection of the first segment.
		if _, ok := doc.([]any); ok || path[0] == mapping.RootSegment {
			w.level(doc, 0, nil)
			return
		}

		root, ok := doc.(map[string]any)
		if !ok {
			return
		}
		top := &frame{fields: scalars(root, "")}
		w.level(w.descend(root, 0), 0, top)
	}
}

// frame is one immutable link of the ancestor chain.
type frame struct {
	parent *frame
	fields map[string]any
}

func (f *frame) push(fields map[string]any) *frame {
	return &frame{parent: f, fields: fields}
}

// merge flattens the chain root first, so deeper levels override.
func merge(f *frame) Row {
	var chain []*frame
	n := 0
	for c := f; c != nil; c = c.parent {
		chain = append(chain, c)
		n += len(c.fields)
	}
	row := make(Row, n)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(row, chain[i].fields)
	}
	return row
}

type walker struct {
	path  []string
	yield func(Row) bool
}

// level visits the collection reached at segment i. It returns false once
// the consumer stopped.
func (w *walker) level(v any, i int, acc *frame) bool {
	prefix := mapping.SourceKey(w.path[:i+1])
	for _, rec := range elements(v) {
		next := acc.push(scalars(rec, prefix))
		if i == len(w.path)-1 {
			if !w.yield(merge(next)) {
				return false
			}
			continue
		}
		if !w.level(w.descend(rec, i+1), i+1, next) {
			return false
		}
	}
	return true
}

// descend returns the value of segment i in obj. A missing collection is
// looked up among the object's other arrays: the first whose elements carry
// the field expected one level further down, or for the last segment the
// first array of objects.
func (w *walker) descend(obj map[string]any, i int) any {
	if v, ok := obj[w.path[i]]; ok && isCollection(v) {
		return v
	}
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		arr, ok := obj[k].([]any)
		if !ok {
			continue
		}
		recs := objects(arr)
		if len(recs) == 0 {
			continue
		}
		if i == len(w.path)-1 {
			return arr
		}
		want := w.path[i+1]
		for _, rec := range recs {
			if _, ok := rec[want]; ok {
				return arr
			}
		}
	}
	return nil
}

// elements treats a single object met at a path segment as a one-element
// collection.
func elements(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		return objects(t)
	case map[string]any:
		return []map[string]any{t}
	}
	return nil
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

// scalars copies the non-collection fields of obj under prefix.
func scalars(obj map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if isCollection(v) {
			continue
		}
		if prefix != "" {
			k = prefix + "." + k
		}
		out[k] = v
	}
	return out
}
