// Package table turns raw row-store responses into a typed, time-sorted table.
package table

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Record is one cleaned row.
type Record struct {
	Item     string    `json:"item"`
	Quantity float64   `json:"quantity"`
	Datetime time.Time `json:"datetime"`
}

// Table is the cleaned table: every record is fully typed and the slice is
// sorted ascending by Datetime.
type Table struct {
	Records []Record
	// Dropped counts raw rows rejected during cleaning.
	Dropped int
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// ForItem returns the records of one item, keeping timestamp order.
func (t *Table) ForItem(item string) []Record {
	if t == nil {
		return nil
	}
	var out []Record
	for _, r := range t.Records {
		if r.Item == item {
			out = append(out, r)
		}
	}
	return out
}

// Fingerprint hashes the table contents. Two tables with the same records in
// the same order have the same fingerprint.
func (t *Table) Fingerprint() uint64 {
	h := xxhash.New()
	if t == nil {
		return h.Sum64()
	}
	var buf [16]byte
	for _, r := range t.Records {
		_, _ = h.WriteString(r.Item)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(r.Quantity))
		binary.LittleEndian.PutUint64(buf[8:], uint64(r.Datetime.UnixNano()))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
