package kpi

import (
	"math"
	"testing"
	"time"

	"gtnh-items-tracker/internal/table"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func track(item string, start time.Time, step time.Duration, quantities ...float64) []table.Record {
	out := make([]table.Record, len(quantities))
	for i, q := range quantities {
		out[i] = table.Record{Item: item, Quantity: q, Datetime: start.Add(time.Duration(i) * step)}
	}
	return out
}

func TestFromRecords(t *testing.T) {
	tests := []struct {
		name      string
		records   []table.Record
		wantAvg   int64
		wantTotal int64
		wantPts   int
	}{
		{
			name:    "empty",
			records: nil,
		},
		{
			name:    "single row",
			records: track("A", now.Add(-time.Hour), time.Hour, 100),
			wantPts: 1,
		},
		{
			name:      "increasing over two hours",
			records:   track("A", now.Add(-2*time.Hour), time.Hour, 10, 15, 22),
			wantAvg:   6,
			wantTotal: 12,
			wantPts:   3,
		},
		{
			name:      "decrease is not clamped",
			records:   track("A", now.Add(-time.Hour), time.Hour, 100, 80),
			wantAvg:   -20,
			wantTotal: -20,
			wantPts:   2,
		},
		{
			name:    "rows outside window ignored",
			records: append(track("A", now.Add(-48*time.Hour), time.Hour, 1, 1000), track("A", now.Add(-time.Hour), time.Hour, 5)...),
			wantPts: 1,
		},
		{
			name:      "same timestamp gives zero rate",
			records:   track("A", now.Add(-time.Hour), 0, 10, 30),
			wantAvg:   0,
			wantTotal: 20,
			wantPts:   2,
		},
		{
			name:      "fractional total rounds",
			records:   track("A", now.Add(-4*time.Hour), 2*time.Hour, 0, 1.25, 2.5),
			wantAvg:   1,
			wantTotal: 2,
			wantPts:   3,
		},
		{
			name:      "overflowing growth saturates",
			records:   track("A", now.Add(-time.Hour), time.Hour, 0, 1e30),
			wantAvg:   math.MaxInt64,
			wantTotal: math.MaxInt64,
			wantPts:   2,
		},
		{
			name:      "overflowing drop saturates",
			records:   track("A", now.Add(-time.Hour), time.Hour, 1e30, 0),
			wantAvg:   math.MinInt64,
			wantTotal: math.MinInt64,
			wantPts:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRecords(tt.records, now, DefaultWindow)
			if got.AvgPerHour != tt.wantAvg {
				t.Errorf("AvgPerHour = %d, want %d", got.AvgPerHour, tt.wantAvg)
			}
			if got.TotalProduced != tt.wantTotal {
				t.Errorf("TotalProduced = %d, want %d", got.TotalProduced, tt.wantTotal)
			}
			if got.Points != tt.wantPts {
				t.Errorf("Points = %d, want %d", got.Points, tt.wantPts)
			}
		})
	}
}

func TestRoundHalfEven(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{2.5, 2},
		{3.5, 4},
		{-2.5, -2},
		{1.4, 1},
		{9.3e18, math.MaxInt64},
		{1e300, math.MaxInt64},
		{math.Inf(1), math.MaxInt64},
		{-9.3e18, math.MinInt64},
		{math.Inf(-1), math.MinInt64},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := roundHalfEven(tt.in); got != tt.want {
			t.Errorf("roundHalfEven(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromRecords_WindowBoundaryInclusive(t *testing.T) {
	records := track("A", now.Add(-24*time.Hour), 24*time.Hour, 0, 48)
	got := FromRecords(records, now, DefaultWindow)
	if got.Points != 2 {
		t.Fatalf("Points = %d, want 2", got.Points)
	}
	if got.AvgPerHour != 2 || got.TotalProduced != 48 {
		t.Errorf("got %+v, want avg 2 total 48", got)
	}
}

func TestCompute_FiltersBySelectedItem(t *testing.T) {
	tbl := &table.Table{Records: append(
		track("A", now.Add(-2*time.Hour), time.Hour, 10, 15, 22),
		track("B", now.Add(-2*time.Hour), time.Hour, 1000, 0)...,
	)}

	got := Compute(tbl, "A", now, DefaultWindow)
	if got.TotalProduced != 12 || got.AvgPerHour != 6 {
		t.Errorf("Compute(A) = %+v", got)
	}

	if got := Compute(tbl, "missing", now, DefaultWindow); got != (KPI{}) {
		t.Errorf("Compute(missing) = %+v, want zero", got)
	}
}
