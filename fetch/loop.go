// Package fetch drives paginated requests against a remote API and exposes
// the flattened rows as a lazy sequence.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hugr-lab/restport/document"
	"github.com/hugr-lab/restport/flatten"
	"github.com/hugr-lab/restport/mapping"
	"github.com/hugr-lab/restport/pushdown"
	"github.com/hugr-lab/restport/transport"
)

// PageContext is everything a renderer may use to build one page request.
type PageContext struct {
	Offset    int
	Limit     int
	Page      int
	StartPage int
	Table     *mapping.Table
	// Columns are the source keys of the projected columns.
	Columns []string
	DNF     [][]pushdown.Criterion
	CNF     [][]pushdown.Criterion
	Params  map[string]any
}

// Renderer builds the request for one page.
type Renderer interface {
	Render(pc PageContext) (*transport.Request, error)
}

// Transport executes one request against one address.
type Transport interface {
	Do(ctx context.Context, address string, req *transport.Request) (*transport.Response, error)
}

// AddressError is returned when every address failed for one page.
type AddressError struct {
	Table string
	Page  int
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("table %s page %d: all addresses failed: %v", e.Table, e.Page, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// ErrNoAddress is returned when a loop has no address to send requests to.
var ErrNoAddress = errors.New("no address configured")

// Query is one scan request.
type Query struct {
	// Columns are output column names; empty selects all columns.
	Columns []string
	Groups  *pushdown.Groups
	// Budget caps the rows yielded. Zero or negative means unlimited.
	Budget int64
}

// Loop fetches the pages of one table. A Loop is safe for concurrent use;
// each Rows call runs its own pagination.
type Loop struct {
	Table     *mapping.Table
	Addresses []string
	Renderer  Renderer
	Transport Transport
	// ContentType overrides the response Content-Type when set.
	ContentType string
	Metrics     *Metrics
	Logger      *slog.Logger

	last atomic.Int32
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Rows returns the rows of q page by page. Pagination starts at offset 0
// and advances by the page size for as long as pages come back full and the
// budget is not met; a short page always ends it. Stopping the iteration
// stops further requests.
//
// Values fixed by "=" conditions on REQUEST columns are written into every
// row before it is yielded.
func (l *Loop) Rows(ctx context.Context, q Query) iter.Seq2[flatten.Row, error] {
	return func(yield func(flatten.Row, error) bool) {
		if len(l.Addresses) == 0 {
			yield(nil, ErrNoAddress)
			return
		}
		paging := l.Table.Paging
		base := l.baseContext(q)
		log := l.logger().With("table", l.Table.Name)

		var emitted int64
		defer func() { l.Metrics.addRows(l.Table.Name, int(emitted)) }()

		for iteration := 0; ; iteration++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			pc := base
			pc.Page = paging.StartPage + iteration
			if paging.PageSize > 0 {
				pc.Offset = iteration * paging.PageSize
			}

			doc, err := l.page(ctx, pc)
			if err != nil {
				yield(nil, err)
				return
			}

			n := 0
			for row := range flatten.Flatten(doc, l.Table.DeepestArrayPath) {
				n++
				if q.Budget > 0 && emitted >= q.Budget {
					break
				}
				substitute(row, q.Groups)
				emitted++
				if !yield(row, nil) {
					return
				}
			}
			log.Debug("page fetched", "page", pc.Page, "offset", pc.Offset, "rows", n)

			if paging.PageSize <= 0 || n < paging.PageSize || (q.Budget > 0 && emitted >= q.Budget) {
				return
			}
		}
	}
}

func (l *Loop) baseContext(q Query) PageContext {
	pc := PageContext{
		StartPage: l.Table.Paging.StartPage,
		Limit:     l.Table.Paging.PageSize,
		Table:     l.Table,
		Columns:   l.sourceKeys(q.Columns),
	}
	if pc.Limit <= 0 && q.Budget > 0 {
		pc.Limit = int(q.Budget)
	}
	if q.Groups != nil {
		pc.DNF = q.Groups.DNF
		pc.CNF = q.Groups.CNF
		pc.Params = q.Groups.Params
	}
	if pc.Params == nil {
		pc.Params = map[string]any{}
	}
	return pc
}

func (l *Loop) sourceKeys(names []string) []string {
	cols := l.Table.Columns
	if len(names) > 0 {
		cols = make([]mapping.Column, 0, len(names))
		for _, n := range names {
			if c, ok := l.Table.Column(n); ok {
				cols = append(cols, c)
			}
		}
	}
	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, c.SourceKey())
	}
	return keys
}

// page renders, sends and decodes one page.
func (l *Loop) page(ctx context.Context, pc PageContext) (any, error) {
	req, err := l.Renderer.Render(pc)
	if err != nil {
		return nil, fmt.Errorf("table %s page %d: render: %w", l.Table.Name, pc.Page, err)
	}

	start := time.Now()
	resp, err := l.exchange(ctx, pc.Page, req)
	l.Metrics.page(l.Table.Name, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	ct := l.ContentType
	if ct == "" {
		ct = resp.ContentType
	}
	doc, err := document.Decode(ct, bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("table %s page %d: %w", l.Table.Name, pc.Page, err)
	}
	return doc, nil
}

// exchange tries the last successful address first, then the others in
// configuration order.
func (l *Loop) exchange(ctx context.Context, page int, req *transport.Request) (*transport.Response, error) {
	first := int(l.last.Load())
	if first >= len(l.Addresses) {
		first = 0
	}
	order := make([]int, 0, len(l.Addresses))
	order = append(order, first)
	for i := range l.Addresses {
		if i != first {
			order = append(order, i)
		}
	}

	var errs []error
	for _, i := range order {
		addr := l.Addresses[i]
		resp, err := l.Transport.Do(ctx, addr, req)
		if err == nil {
			l.last.Store(int32(i))
			return resp, nil
		}
		l.logger().Debug("address failed", "table", l.Table.Name, "page", page, "address", addr, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &AddressError{Table: l.Table.Name, Page: page, Err: errors.Join(errs...)}
}

func substitute(row flatten.Row, g *pushdown.Groups) {
	if g == nil {
		return
	}
	for k, v := range g.Substitutions {
		if cur, ok := row[k]; !ok || cur == nil {
			row[k] = v
		}
	}
}
