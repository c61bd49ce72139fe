package flight

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/restport/catalog"
)

// TicketData is the decoded content of a Flight ticket. Tickets are opaque
// to clients; they route DoGet to a table and carry what the endpoints
// action received from the host.
type TicketData struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`

	// Filters is the DuckDB filter pushdown JSON, verbatim.
	Filters string `json:"filters,omitempty"`

	// Columns to project; nil means all columns.
	Columns []string `json:"columns,omitempty"`
}

var (
	errEmptySchema = errors.New("schema name cannot be empty")
	errEmptyTable  = errors.New("table name cannot be empty")
)

// EncodeTicket creates a ticket for a full scan of schema.table.
func EncodeTicket(schema, table string) ([]byte, error) {
	return (&TicketData{Schema: schema, Table: table}).Encode()
}

// Encode serializes the ticket.
func (td *TicketData) Encode() ([]byte, error) {
	if td.Schema == "" {
		return nil, errEmptySchema
	}
	if td.Table == "" {
		return nil, errEmptyTable
	}
	data, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses a ticket produced by Encode.
func DecodeTicket(ticketBytes []byte) (*TicketData, error) {
	if len(ticketBytes) == 0 {
		return nil, errors.New("ticket cannot be empty")
	}

	var ticket TicketData
	if err := json.Unmarshal(ticketBytes, &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}
	if ticket.Schema == "" {
		return nil, fmt.Errorf("decoded ticket: %w", errEmptySchema)
	}
	if ticket.Table == "" {
		return nil, fmt.Errorf("decoded ticket: %w", errEmptyTable)
	}
	return &ticket, nil
}

// ToScanOptions converts the ticket into scan options.
func (td *TicketData) ToScanOptions() *catalog.ScanOptions {
	opts := &catalog.ScanOptions{
		Columns: td.Columns,
	}
	if td.Filters != "" {
		opts.Filter = []byte(td.Filters)
	}
	return opts
}
