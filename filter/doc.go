// Package filter parses DuckDB Airport extension filter pushdown JSON and
// decomposes it into the boolean normal forms REST sources understand.
//
// Parse turns the JSON received in ScanOptions.Filter into typed
// expressions; Normalize reduces them to literal lists:
//
//	p, err := filter.Parse(scanOpts.Filter)
//	if err != nil {
//	    return err // Malformed JSON
//	}
//	n := filter.Normalize(p)
//	for _, group := range n.DNF {
//	    // every literal in group must hold
//	}
//
// # Unsupported Expression Handling
//
// Only comparisons of a column with a constant, AND, OR, NOT, IN and
// BETWEEN become literals. Everything else is dropped so the pushed
// filter is never narrower than the query:
//   - AND keeps its supported children and drops the rest
//   - an OR with any unsupported child is dropped whole
//   - conditions expanding beyond MaxGroups groups are not pushed at all
//
// DuckDB re-applies the full filter to the rows a scan returns.
package filter
