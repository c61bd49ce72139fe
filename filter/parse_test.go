package filter

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func column(i int, typ string) string {
	return fmt.Sprintf(`{"expression_class":"BOUND_COLUMN_REF","type":"BOUND_COLUMN_REF","return_type":{"id":%q},"binding":{"table_index":0,"column_index":%d},"depth":0}`, typ, i)
}

func literal(typ, value string) string {
	return fmt.Sprintf(`{"expression_class":"BOUND_CONSTANT","type":"VALUE_CONSTANT","value":{"type":{"id":%q,"type_info":null},"is_null":false,"value":%s}}`, typ, value)
}

func compare(kind, left, right string) string {
	return fmt.Sprintf(`{"expression_class":"BOUND_COMPARISON","type":%q,"left":%s,"right":%s}`, kind, left, right)
}

func document(columns string, filters ...string) []byte {
	out := `{"filters":[`
	for i, f := range filters {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return []byte(out + `],"column_binding_names_by_index":[` + columns + `]}`)
}

func mustParse(t *testing.T, data []byte) *Pushdown {
	t.Helper()
	p, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestParseEmpty(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte("  \n")} {
		p := mustParse(t, in)
		if len(p.Filters) != 0 {
			t.Errorf("%q: expected no filters, got %d", in, len(p.Filters))
		}
	}
}

func TestParseSimpleEquality(t *testing.T) {
	// WHERE id = 42
	p := mustParse(t, document(`"id"`, compare("COMPARE_EQUAL", column(0, "INTEGER"), literal("INTEGER", "42"))))
	if len(p.Filters) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(p.Filters))
	}
	e := p.Filters[0]
	if e.Class != ClassComparison || e.Kind != KindEqual || len(e.Args) != 2 {
		t.Fatalf("unexpected node %+v", e)
	}
	name, err := p.ColumnName(e.Args[0])
	if err != nil || name != "id" {
		t.Errorf("expected column id, got %q (%v)", name, err)
	}
	if e.Args[0].Type != TypeInteger {
		t.Errorf("expected INTEGER column, got %s", e.Args[0].Type)
	}
	if v := e.Args[1].Value; v.Type != TypeInteger || v.Data != int64(42) {
		t.Errorf("unexpected constant %+v", v)
	}
}

func TestParseConjunction(t *testing.T) {
	// WHERE status = 'open' OR priority > 3
	or := fmt.Sprintf(`{"expression_class":"BOUND_CONJUNCTION","type":"CONJUNCTION_OR","children":[%s,%s]}`,
		compare("COMPARE_EQUAL", column(0, "VARCHAR"), literal("VARCHAR", `"open"`)),
		compare("COMPARE_GREATERTHAN", column(1, "INTEGER"), literal("INTEGER", "3")),
	)
	p := mustParse(t, document(`"status","priority"`, or))
	e := p.Filters[0]
	if e.Class != ClassConjunction || e.Kind != KindOr || len(e.Args) != 2 {
		t.Fatalf("unexpected node %+v", e)
	}
	if got := e.Args[0].Args[1].Value.Data; got != "open" {
		t.Errorf("expected \"open\", got %v", got)
	}
	if e.Args[1].Kind != KindGreaterThan {
		t.Errorf("expected greater-than, got %s", e.Args[1].Kind)
	}
}

func TestParseCast(t *testing.T) {
	cast := fmt.Sprintf(`{"expression_class":"BOUND_CAST","type":"OPERATOR_CAST","child":%s,"return_type":{"id":"BIGINT"},"try_cast":false}`,
		literal("INTEGER", "7"))
	p := mustParse(t, document(`"n"`, compare("COMPARE_EQUAL", column(0, "BIGINT"), cast)))
	c := p.Filters[0].Args[1]
	if c.Class != ClassCast || c.Type != TypeBigInt || len(c.Args) != 1 {
		t.Fatalf("unexpected cast %+v", c)
	}
	if c.Args[0].Value.Data != int64(7) {
		t.Errorf("unexpected cast child %+v", c.Args[0])
	}
}

func TestParseBetween(t *testing.T) {
	between := fmt.Sprintf(`{"expression_class":"BOUND_BETWEEN","type":"COMPARE_BETWEEN","input":%s,"lower":%s,"upper":%s,"lower_inclusive":true,"upper_inclusive":false}`,
		column(0, "DOUBLE"), literal("DOUBLE", "1.5"), literal("DOUBLE", "2.5"))
	p := mustParse(t, document(`"x"`, between))
	e := p.Filters[0]
	if e.Class != ClassBetween || len(e.Args) != 3 {
		t.Fatalf("unexpected node %+v", e)
	}
	if !e.LowerInclusive || e.UpperInclusive {
		t.Errorf("unexpected inclusiveness %v/%v", e.LowerInclusive, e.UpperInclusive)
	}
	if e.Args[1].Value.Data != 1.5 || e.Args[2].Value.Data != 2.5 {
		t.Errorf("unexpected bounds %v %v", e.Args[1].Value.Data, e.Args[2].Value.Data)
	}
}

func TestParseOperator(t *testing.T) {
	in := fmt.Sprintf(`{"expression_class":"BOUND_OPERATOR","type":"COMPARE_IN","children":[%s,%s,%s]}`,
		column(0, "VARCHAR"), literal("VARCHAR", `"a"`), literal("VARCHAR", `"b"`))
	not := fmt.Sprintf(`{"expression_class":"BOUND_OPERATOR","type":"OPERATOR_NOT","children":[%s]}`,
		compare("COMPARE_EQUAL", column(0, "VARCHAR"), literal("VARCHAR", `"c"`)))
	p := mustParse(t, document(`"k"`, in, not))
	if e := p.Filters[0]; e.Kind != KindIn || len(e.Args) != 3 {
		t.Errorf("unexpected IN %+v", e)
	}
	if e := p.Filters[1]; e.Kind != KindNot || len(e.Args) != 1 || e.Args[0].Class != ClassComparison {
		t.Errorf("unexpected NOT %+v", e)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"filters": [`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	bad := compare("COMPARE_EQUAL", column(0, "INTEGER"), literal("INTEGER", `"x"`))
	if _, err := Parse(document(`"id"`, bad)); err == nil {
		t.Fatal("expected error for a string INTEGER constant")
	}
}

func TestParseInvalidColumnBinding(t *testing.T) {
	p := mustParse(t, document(`"id"`, compare("COMPARE_EQUAL", column(5, "INTEGER"), literal("INTEGER", "1"))))
	_, err := p.ColumnName(p.Filters[0].Args[0])
	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if be.Index != 5 || be.Count != 1 {
		t.Errorf("unexpected binding error %+v", be)
	}
}

func TestParseUnknownClass(t *testing.T) {
	fn := fmt.Sprintf(`{"expression_class":"BOUND_FUNCTION","type":"BOUND_FUNCTION","name":"lower","children":[%s]}`, column(0, "VARCHAR"))
	p := mustParse(t, document(`"name"`, compare("COMPARE_EQUAL", fn, literal("VARCHAR", `"x"`))))
	left := p.Filters[0].Args[0]
	if left.Known() {
		t.Fatalf("expected function node to be unknown, got %+v", left)
	}
	if len(left.Args) != 0 {
		t.Errorf("expected opaque node without operands, got %d", len(left.Args))
	}
}

func TestParseTemporalConstants(t *testing.T) {
	tests := []struct {
		typ   string
		value string
		want  any
	}{
		{"DATE", "19723", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"TIMESTAMP", "1704067200000000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"TIMESTAMP WITH TIME ZONE", "1704067200000000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"TIMESTAMP_MS", "1704067200000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"TIMESTAMP_S", "1704067200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"TIMESTAMP_NS", "1704067200000000001", time.Date(2024, 1, 1, 0, 0, 0, 1, time.UTC)},
		{"TIME", "45296000000", "12:34:56"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			p := mustParse(t, document(`"t"`, compare("COMPARE_EQUAL", column(0, tt.typ), literal(tt.typ, tt.value))))
			got := p.Filters[0].Args[1].Value.Data
			if want, ok := tt.want.(time.Time); ok {
				ts, ok := got.(time.Time)
				if !ok || !ts.Equal(want) {
					t.Fatalf("expected %v, got %v", want, got)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseNullConstant(t *testing.T) {
	null := `{"expression_class":"BOUND_CONSTANT","type":"VALUE_CONSTANT","value":{"type":{"id":"INTEGER"},"is_null":true,"value":null}}`
	p := mustParse(t, document(`"id"`, compare("COMPARE_EQUAL", column(0, "INTEGER"), null)))
	if v := p.Filters[0].Args[1].Value; !v.Null || v.Data != nil {
		t.Errorf("expected null constant, got %+v", v)
	}
}

func TestParseBase64Varchar(t *testing.T) {
	p := mustParse(t, document(`"s"`, compare("COMPARE_EQUAL", column(0, "VARCHAR"), literal("VARCHAR", `{"base64":"aGk="}`))))
	if got := p.Filters[0].Args[1].Value.Data; got != "hi" {
		t.Errorf("expected \"hi\", got %v", got)
	}
}
