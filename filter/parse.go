package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
)

// Parse decodes the filter JSON the Airport extension sends with a scan.
// Empty input yields an empty Pushdown. Expression classes outside the
// known set parse as opaque nodes rather than failing, so the rest of the
// filter can still be used.
func Parse(data []byte) (*Pushdown, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Pushdown{}, nil
	}

	var doc struct {
		Filters []json.RawMessage `json:"filters"`
		Columns []string          `json:"column_binding_names_by_index"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}

	p := &Pushdown{Columns: doc.Columns, Filters: make([]*Expr, 0, len(doc.Filters))}
	for i, raw := range doc.Filters {
		e, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("filter: filters[%d]: %w", i, err)
		}
		p.Filters = append(p.Filters, e)
	}
	return p, nil
}

// node carries the keys of every known class. Operands stay raw until
// the class says which of them are present.
type node struct {
	Class      Class             `json:"expression_class"`
	Kind       Kind              `json:"type"`
	Left       json.RawMessage   `json:"left"`
	Right      json.RawMessage   `json:"right"`
	Children   []json.RawMessage `json:"children"`
	Child      json.RawMessage   `json:"child"`
	Input      json.RawMessage   `json:"input"`
	Lower      json.RawMessage   `json:"lower"`
	Upper      json.RawMessage   `json:"upper"`
	LowerIncl  bool              `json:"lower_inclusive"`
	UpperIncl  bool              `json:"upper_inclusive"`
	Value      json.RawMessage   `json:"value"`
	ReturnType struct {
		ID TypeID `json:"id"`
	} `json:"return_type"`
	Binding struct {
		Column int `json:"column_index"`
	} `json:"binding"`
}

func decode(raw json.RawMessage) (*Expr, error) {
	var n node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	e := &Expr{Class: n.Class, Kind: n.Kind}

	var operands []json.RawMessage
	switch n.Class {
	case ClassComparison:
		operands = []json.RawMessage{n.Left, n.Right}
	case ClassConjunction, ClassOperator:
		operands = n.Children
	case ClassBetween:
		operands = []json.RawMessage{n.Input, n.Lower, n.Upper}
		e.LowerInclusive, e.UpperInclusive = n.LowerIncl, n.UpperIncl
	case ClassCast:
		operands = []json.RawMessage{n.Child}
		e.Type = n.ReturnType.ID.Canonical()
	case ClassColumnRef:
		e.Column = n.Binding.Column
		e.Type = n.ReturnType.ID.Canonical()
	case ClassConstant:
		v, err := decodeValue(n.Value)
		if err != nil {
			return nil, err
		}
		e.Value = v
	}

	for i, op := range operands {
		arg, err := decode(op)
		if err != nil {
			return nil, fmt.Errorf("%s operand %d: %w", n.Class, i, err)
		}
		e.Args = append(e.Args, arg)
	}
	return e, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeValue(raw json.RawMessage) (Value, error) {
	if isNull(raw) {
		return Value{Null: true}, nil
	}
	var v struct {
		Type struct {
			ID TypeID `json:"id"`
		} `json:"type"`
		IsNull bool            `json:"is_null"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, fmt.Errorf("invalid value: %w", err)
	}

	out := Value{Type: v.Type.ID.Canonical()}
	if v.IsNull || isNull(v.Value) {
		out.Null = true
		return out, nil
	}
	data, err := valueData(out.Type, v.Value)
	if err != nil {
		return Value{}, fmt.Errorf("invalid %s value: %w", out.Type, err)
	}
	out.Data = data
	return out, nil
}

func valueData(t TypeID, raw json.RawMessage) (any, error) {
	switch {
	case t == TypeBoolean:
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case t.signed():
		var i int64
		err := json.Unmarshal(raw, &i)
		return i, err
	case t.unsigned():
		var u uint64
		err := json.Unmarshal(raw, &u)
		return u, err
	case t == TypeFloat || t == TypeDouble:
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	case t == TypeDecimal:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s, nil
		}
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	case t == TypeVarchar || t == TypeChar || t == TypeUUID:
		b, err := text(raw)
		return string(b), err
	case t == TypeBlob:
		return text(raw)
	case t.temporal():
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, err
		}
		return temporal(t, i), nil
	}
	var v any
	err := json.Unmarshal(raw, &v)
	return v, err
}

// text decodes a JSON string or the {"base64": ...} object DuckDB uses
// for bytes that are not valid UTF-8.
func text(raw json.RawMessage) ([]byte, error) {
	var wrapped struct {
		Base64 string `json:"base64"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Base64 != "" {
		b, err := base64.StdEncoding.DecodeString(wrapped.Base64)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}
