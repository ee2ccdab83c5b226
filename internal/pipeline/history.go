package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunRecord summarises one pipeline run.
type RunRecord struct {
	ID         string    `json:"id"`
	RunAt      time.Time `json:"run_at"`
	DurationMs int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Version    uint64    `json:"version"`
	Changed    bool      `json:"changed"`
	Items      int       `json:"items"`
	Rows       int       `json:"rows"`
	Dropped    int       `json:"dropped"`
	Message    string    `json:"message,omitempty"`
}

// History keeps the most recent runs in a ring buffer.
type History struct {
	mu      sync.RWMutex
	records []RunRecord
	maxRows int
	head    int // next write position
	count   int
}

// NewHistory creates a history holding up to maxRows runs.
func NewHistory(maxRows int) *History {
	if maxRows < 1 {
		maxRows = 1
	}
	return &History{
		records: make([]RunRecord, maxRows),
		maxRows: maxRows,
	}
}

// Record appends a summary of published.
func (h *History) Record(published Snapshot, changed bool) RunRecord {
	rec := RunRecord{
		ID:         uuid.NewString(),
		RunAt:      published.CheckedAt,
		DurationMs: published.Duration.Milliseconds(),
		Outcome:    string(published.Outcome()),
		Version:    published.Version,
		Changed:    changed,
		Items:      len(published.Items),
		Rows:       published.Table.Len(),
	}
	if published.Table != nil {
		rec.Dropped = published.Table.Dropped
	}
	switch {
	case published.Err != "":
		rec.Message = published.Err
	case published.Halt != nil:
		rec.Message = published.Halt.Message
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.head] = rec
	h.head = (h.head + 1) % h.maxRows
	if h.count < h.maxRows {
		h.count++
	}
	return rec
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (h *History) List(limit int) []RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.head - i + h.maxRows) % h.maxRows
		out = append(out, h.records[idx])
	}
	return out
}

// Len returns the number of stored runs.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
