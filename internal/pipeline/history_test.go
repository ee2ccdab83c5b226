package pipeline

import (
	"testing"
	"time"

	"gtnh-items-tracker/internal/table"
)

func TestHistory_RingBuffer(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.Record(Snapshot{Version: uint64(i + 1), CheckedAt: base.Add(time.Duration(i) * time.Minute)}, true)
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	runs := h.List(0)
	if len(runs) != 3 {
		t.Fatalf("List(0) = %d runs, want 3", len(runs))
	}
	for i, want := range []uint64{5, 4, 3} {
		if runs[i].Version != want {
			t.Errorf("runs[%d].Version = %d, want %d", i, runs[i].Version, want)
		}
	}
	if got := h.List(2); len(got) != 2 || got[0].Version != 5 {
		t.Errorf("List(2) = %+v", got)
	}
}

func TestHistory_RecordsOutcome(t *testing.T) {
	h := NewHistory(4)

	rec := h.Record(Snapshot{Halt: &table.Halt{Level: table.LevelWarning, Message: table.MsgNoItemData}}, true)
	if rec.Outcome != "halted" || rec.Message != table.MsgNoItemData {
		t.Errorf("halt record = %+v", rec)
	}
	if rec.ID == "" {
		t.Error("record should carry an id")
	}

	rec = h.Record(Snapshot{
		Items: []string{"a"},
		Table: &table.Table{Records: []table.Record{{Item: "a"}}, Dropped: 2},
	}, false)
	if rec.Outcome != "ok" || rec.Rows != 1 || rec.Dropped != 2 || rec.Changed {
		t.Errorf("ok record = %+v", rec)
	}
}
