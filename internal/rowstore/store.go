// Package rowstore queries the external table of item-quantity records.
// It is read-only: the tracker never writes to the row store.
package rowstore

import (
	"context"
	"strings"
	"time"
)

// Column names the tracker relies on.
const (
	ColumnItem     = "item"
	ColumnQuantity = "quantity"
	ColumnDatetime = "datetime"
)

// Row is one record as returned by the row store. Values are loosely typed;
// callers coerce them explicitly.
type Row = map[string]any

// Response is the result of a Select.
type Response struct {
	Data      []Row     `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Query describes a select against a table or view.
type Query struct {
	Table string
	// Columns is the projection; empty means all columns.
	Columns []string
	// Since filters rows to datetime > Since; zero means no filter.
	Since time.Time
}

// AllColumns reports whether the query projects every column.
func (q Query) AllColumns() bool {
	if len(q.Columns) == 0 {
		return true
	}
	for _, c := range q.Columns {
		if c == "*" {
			return true
		}
	}
	return false
}

// Select returns the projection as a PostgREST-style select list.
func (q Query) Select() string {
	if q.AllColumns() {
		return "*"
	}
	return strings.Join(q.Columns, ",")
}

// Key identifies the query shape for caching.
func (q Query) Key() string {
	since := "-"
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format(time.RFC3339Nano)
	}
	return q.Table + "|" + q.Select() + "|" + since
}

// Store is the interface for row store access.
type Store interface {
	// Select runs a read query.
	Select(ctx context.Context, q Query) (*Response, error)

	// Ping checks that the row store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
