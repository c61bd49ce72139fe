package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/restport/flatten"
	"github.com/hugr-lab/restport/mapping"
	"github.com/hugr-lab/restport/pushdown"
	"github.com/hugr-lab/restport/transport"
)

// offsetRenderer encodes the page context into the request path.
type offsetRenderer struct {
	contexts []PageContext
}

func (r *offsetRenderer) Render(pc PageContext) (*transport.Request, error) {
	r.contexts = append(r.contexts, pc)
	return &transport.Request{Path: fmt.Sprintf("/items?offset=%d&limit=%d", pc.Offset, pc.Limit)}, nil
}

// pagedTransport serves pages of the given sizes as JSON arrays.
type pagedTransport struct {
	pages    []int
	calls    int
	failures map[string]error
	seen     []string
}

func (p *pagedTransport) Do(_ context.Context, address string, _ *transport.Request) (*transport.Response, error) {
	p.seen = append(p.seen, address)
	if err := p.failures[address]; err != nil {
		return nil, err
	}
	n := 0
	if p.calls < len(p.pages) {
		n = p.pages[p.calls]
	}
	p.calls++
	items := make([]string, n)
	for i := range items {
		items[i] = `{"id":` + strconv.Itoa(p.calls*100+i) + `}`
	}
	return &transport.Response{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte("[" + strings.Join(items, ",") + "]"),
	}, nil
}

func itemsTable(pageSize int) *mapping.Table {
	return mapping.NewTable("items", []mapping.Column{
		{Name: "id", Type: mapping.TypeLong, SourcePath: []string{"$", "id"}},
		{Name: "since", Type: mapping.TypeDate, SourcePath: []string{"since"}, Direction: mapping.DirectionRequest},
	}, []string{mapping.RootSegment}, mapping.Paging{StartPage: 1, PageSize: pageSize})
}

func collect(t *testing.T, seq func(func(flatten.Row, error) bool)) ([]flatten.Row, error) {
	t.Helper()
	var rows []flatten.Row
	for row, err := range seq {
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func TestRowsPaginatesUntilShortPage(t *testing.T) {
	tr := &pagedTransport{pages: []int{2, 2, 2, 1}}
	r := &offsetRenderer{}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: r, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{}))
	require.NoError(t, err)
	assert.Len(t, rows, 7)
	assert.Equal(t, 4, tr.calls)

	require.Len(t, r.contexts, 4)
	for i, pc := range r.contexts {
		assert.Equal(t, i*2, pc.Offset)
		assert.Equal(t, 1+i, pc.Page)
		assert.Equal(t, 1, pc.StartPage)
		assert.Equal(t, 2, pc.Limit)
	}
}

func TestRowsBudget(t *testing.T) {
	tr := &pagedTransport{pages: []int{2, 2}}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{Budget: 3}))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 2, tr.calls)
}

func TestRowsBudgetMetOnPageBoundary(t *testing.T) {
	tr := &pagedTransport{pages: []int{2, 2, 2}}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{Budget: 2}))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, tr.calls)
}

func TestRowsNoPaging(t *testing.T) {
	tr := &pagedTransport{pages: []int{5, 5}}
	r := &offsetRenderer{}
	l := &Loop{Table: itemsTable(0), Addresses: []string{"http://a"}, Renderer: r, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{Budget: 10}))
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, 10, r.contexts[0].Limit, "budget stands in for the limit without paging")
}

func TestRowsStopEarly(t *testing.T) {
	tr := &pagedTransport{pages: []int{2, 2, 2}}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr}

	n := 0
	for _, err := range l.Rows(context.Background(), Query{}) {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 2, tr.calls)
}

func TestRowsRestartsFromZero(t *testing.T) {
	r := &offsetRenderer{}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: r, Transport: &pagedTransport{pages: []int{2, 1, 2, 1}}}

	_, err := collect(t, l.Rows(context.Background(), Query{}))
	require.NoError(t, err)
	_, err = collect(t, l.Rows(context.Background(), Query{}))
	require.NoError(t, err)

	require.Len(t, r.contexts, 4)
	assert.Equal(t, 0, r.contexts[2].Offset)
}

func TestRowsSubstitution(t *testing.T) {
	l := &Loop{Table: itemsTable(0), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: &pagedTransport{pages: []int{2}}}
	g := &pushdown.Groups{Substitutions: map[string]any{"since": "2024-01-01"}}

	rows, err := collect(t, l.Rows(context.Background(), Query{Groups: g}))
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "2024-01-01", r["since"])
	}
}

func TestRowsProjection(t *testing.T) {
	r := &offsetRenderer{}
	l := &Loop{Table: itemsTable(0), Addresses: []string{"http://a"}, Renderer: r, Transport: &pagedTransport{pages: []int{1}}}
	_, err := collect(t, l.Rows(context.Background(), Query{Columns: []string{"id", "nope"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, r.contexts[0].Columns)
}

func TestRowsAddressFallback(t *testing.T) {
	tr := &pagedTransport{
		pages:    []int{2, 2, 1},
		failures: map[string]error{"http://a": errors.New("connection refused")},
	}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a", "http://b", "http://c"}, Renderer: &offsetRenderer{}, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{}))
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	// a fails once, b is remembered for the following pages.
	assert.Equal(t, []string{"http://a", "http://b", "http://b", "http://b"}, tr.seen)
}

func TestRowsAllAddressesFail(t *testing.T) {
	errA := errors.New("refused")
	errB := &transport.StatusError{URL: "http://b/items", StatusCode: 503}
	tr := &pagedTransport{failures: map[string]error{"http://a": errA, "http://b": errB}}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a", "http://b"}, Renderer: &offsetRenderer{}, Transport: tr}

	_, err := collect(t, l.Rows(context.Background(), Query{}))
	var ae *AddressError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 1, ae.Page)
	assert.ErrorIs(t, err, errA)
	var se *transport.StatusError
	assert.True(t, errors.As(err, &se))
}

func TestRowsErrorAfterRows(t *testing.T) {
	tr := &errorAfter{ok: 1, body: `[{"id":1},{"id":2}]`}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr}

	rows, err := collect(t, l.Rows(context.Background(), Query{}))
	require.Error(t, err)
	assert.Len(t, rows, 2, "rows yielded before the failure stay visible")
}

func TestRowsShapeError(t *testing.T) {
	tr := &errorAfter{ok: 1, body: `"nope"`}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr}
	_, err := collect(t, l.Rows(context.Background(), Query{}))
	require.Error(t, err)
}

func TestRowsNoAddress(t *testing.T) {
	l := &Loop{Table: itemsTable(2), Renderer: &offsetRenderer{}, Transport: &pagedTransport{}}
	_, err := collect(t, l.Rows(context.Background(), Query{}))
	require.ErrorIs(t, err, ErrNoAddress)
}

func TestRowsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: &pagedTransport{pages: []int{2}}}
	_, err := collect(t, l.Rows(ctx, Query{}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	again, err := NewMetrics(reg)
	require.NoError(t, err, "second registration reuses collectors")

	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: &pagedTransport{pages: []int{2, 1}}, Metrics: again}
	_, err = collect(t, l.Rows(context.Background(), Query{}))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages.WithLabelValues("items", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues("items")))
}

func TestMetricsCountRowsBeforeFailure(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	tr := &errorAfter{ok: 1, body: `[{"id":1},{"id":2}]`}
	l := &Loop{Table: itemsTable(2), Addresses: []string{"http://a"}, Renderer: &offsetRenderer{}, Transport: tr, Metrics: m}
	rows, err := collect(t, l.Rows(context.Background(), Query{}))
	require.Error(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("items")))
}

type errorAfter struct {
	ok    int
	body  string
	calls int
}

func (e *errorAfter) Do(context.Context, string, *transport.Request) (*transport.Response, error) {
	e.calls++
	if e.calls > e.ok {
		return nil, errors.New("boom")
	}
	return &transport.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(e.body)}, nil
}
