package table

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gtnh-items-tracker/internal/rowstore"
)

func resp(rows ...rowstore.Row) *rowstore.Response {
	return &rowstore.Response{Data: rows}
}

func haltOf(t *testing.T, err error) Halt {
	t.Helper()
	var he *HaltError
	if !errors.As(err, &he) {
		t.Fatalf("error %v is not a HaltError", err)
	}
	return he.Halt
}

func TestDistinctItems(t *testing.T) {
	items, err := DistinctItems(resp(
		rowstore.Row{"item": "Iron Ingot"},
		rowstore.Row{"item": "Copper Ingot"},
		rowstore.Row{"item": nil},
		rowstore.Row{"other": "x"},
		rowstore.Row{"item": "Iron Ingot"},
	))
	if err != nil {
		t.Fatalf("DistinctItems error: %v", err)
	}
	want := []string{"Iron Ingot", "Copper Ingot"}
	if strings.Join(items, "|") != strings.Join(want, "|") {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestDistinctItems_Halts(t *testing.T) {
	tests := []struct {
		name string
		resp *rowstore.Response
		want string
	}{
		{"nil response", nil, MsgNoItemData},
		{"empty", resp(), MsgNoItemData},
		{"no item column", resp(rowstore.Row{"quantity": 1}), MsgNoItemData},
		{"all null", resp(rowstore.Row{"item": nil}), MsgNoItemsWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DistinctItems(tt.resp)
			h := haltOf(t, err)
			if h.Message != tt.want || h.Level != LevelWarning {
				t.Errorf("halt = %+v, want warning %q", h, tt.want)
			}
		})
	}
}

func TestClean_StringValuesParse(t *testing.T) {
	tbl, err := Clean(resp(rowstore.Row{
		"item":     "Iron Ingot",
		"quantity": "42",
		"datetime": "2024-01-01T00:00:00Z",
		"extra":    true,
	}))
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	r := tbl.Records[0]
	if r.Quantity != 42 {
		t.Errorf("Quantity = %v, want 42", r.Quantity)
	}
	if !r.Datetime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Datetime = %v", r.Datetime)
	}
}

func TestClean_DropsInvalidRowsAndSorts(t *testing.T) {
	tbl, err := Clean(resp(
		rowstore.Row{"item": "A", "quantity": json.Number("3"), "datetime": "2024-01-01T03:00:00Z"},
		rowstore.Row{"item": "A", "quantity": "bad", "datetime": "2024-01-01T01:00:00Z"},
		rowstore.Row{"item": "A", "quantity": 1, "datetime": "not a time"},
		rowstore.Row{"item": nil, "quantity": 1, "datetime": "2024-01-01T01:00:00Z"},
		rowstore.Row{"quantity": 1, "datetime": "2024-01-01T01:00:00Z"},
		rowstore.Row{"item": "B", "quantity": 2.5, "datetime": "2024-01-01T02:00:00Z"},
		rowstore.Row{"item": "A", "quantity": nil, "datetime": "2024-01-01T00:00:00Z"},
		rowstore.Row{"item": "A", "quantity": 1, "datetime": "2024-01-01T01:00:00Z"},
	))
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if tbl.Dropped != 5 {
		t.Errorf("Dropped = %d, want 5", tbl.Dropped)
	}
	for i := 1; i < len(tbl.Records); i++ {
		if tbl.Records[i].Datetime.Before(tbl.Records[i-1].Datetime) {
			t.Fatalf("records not sorted at %d: %v", i, tbl.Records)
		}
	}
	for _, r := range tbl.Records {
		if r.Item == "" || r.Datetime.IsZero() {
			t.Errorf("invalid record survived: %+v", r)
		}
	}
}

func TestClean_Halts(t *testing.T) {
	tests := []struct {
		name    string
		resp    *rowstore.Response
		level   Level
		message string
	}{
		{"empty", resp(), LevelWarning, MsgNoChartData},
		{
			"missing columns",
			resp(rowstore.Row{"item": "A"}),
			LevelError,
			"Missing required columns: {datetime, quantity}",
		},
		{
			"all invalid",
			resp(rowstore.Row{"item": "A", "quantity": "x", "datetime": "y"}),
			LevelWarning,
			MsgAllInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Clean(tt.resp)
			h := haltOf(t, err)
			if h.Level != tt.level || h.Message != tt.message {
				t.Errorf("halt = %+v, want %s %q", h, tt.level, tt.message)
			}
		})
	}
}

func TestClean_MissingItemKeyDroppedButOthersKept(t *testing.T) {
	// The item-only query never sees the keyless row, while the full-row
	// query still receives it and drops it during cleaning.
	items, err := DistinctItems(resp(rowstore.Row{"item": "A"}, rowstore.Row{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0] != "A" {
		t.Errorf("items = %v", items)
	}

	tbl, err := Clean(resp(
		rowstore.Row{"quantity": 5, "datetime": "2024-01-01T00:00:00Z"},
		rowstore.Row{"item": "A", "quantity": 5, "datetime": "2024-01-01T00:00:00Z"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 || tbl.Dropped != 1 {
		t.Errorf("Len/Dropped = %d/%d, want 1/1", tbl.Len(), tbl.Dropped)
	}
}

func TestTable_ForItemAndFingerprint(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Table{Records: []Record{
		{Item: "A", Quantity: 1, Datetime: base},
		{Item: "B", Quantity: 2, Datetime: base.Add(time.Hour)},
		{Item: "A", Quantity: 3, Datetime: base.Add(2 * time.Hour)},
	}}

	got := a.ForItem("A")
	if len(got) != 2 || got[1].Quantity != 3 {
		t.Errorf("ForItem(A) = %v", got)
	}
	if len(a.ForItem("missing")) != 0 {
		t.Error("ForItem(missing) should be empty")
	}

	b := &Table{Records: append([]Record(nil), a.Records...)}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical tables should share a fingerprint")
	}
	b.Records[2].Quantity = 4
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("changed quantity should change the fingerprint")
	}

	var nilTable *Table
	if nilTable.Len() != 0 || nilTable.ForItem("A") != nil {
		t.Error("nil table should be empty")
	}
}
