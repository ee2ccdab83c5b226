// Package kpi derives production metrics from an item's quantity history.
package kpi

import (
	"math"
	"time"

	"gtnh-items-tracker/internal/table"
)

// DefaultWindow is the rolling window the dashboard reports on.
const DefaultWindow = 24 * time.Hour

// KPI is the metric pair shown next to the primary chart.
type KPI struct {
	// AvgPerHour is TotalProduced divided by the hours spanned by the window's rows.
	AvgPerHour int64 `json:"avg_per_hour"`
	// TotalProduced is the sum of consecutive quantity deltas; negative when
	// consumption outpaced production.
	TotalProduced int64 `json:"total_produced"`
	// Points is the number of rows inside the window.
	Points int `json:"points"`
}

// Compute returns the KPIs of item over [now-window, now].
func Compute(t *table.Table, item string, now time.Time, window time.Duration) KPI {
	return FromRecords(t.ForItem(item), now, window)
}

// FromRecords computes the KPIs from one item's records in timestamp order.
//
// With one row or fewer inside the window there is no delta and both values are 0.
func FromRecords(track []table.Record, now time.Time, window time.Duration) KPI {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	var inWindow []table.Record
	for _, r := range track {
		if !r.Datetime.Before(cutoff) {
			inWindow = append(inWindow, r)
		}
	}

	out := KPI{Points: len(inWindow)}
	if len(inWindow) <= 1 {
		return out
	}

	total := 0.0
	first, last := inWindow[0].Datetime, inWindow[0].Datetime
	for i := 1; i < len(inWindow); i++ {
		total += inWindow[i].Quantity - inWindow[i-1].Quantity
		if inWindow[i].Datetime.Before(first) {
			first = inWindow[i].Datetime
		}
		if inWindow[i].Datetime.After(last) {
			last = inWindow[i].Datetime
		}
	}

	hours := last.Sub(first).Hours()
	if hours > 0 {
		out.AvgPerHour = roundHalfEven(total / hours)
	}
	out.TotalProduced = roundHalfEven(total)
	return out
}

// roundHalfEven rounds to the nearest integer, ties to even, saturating at
// the int64 bounds. NaN maps to 0.
func roundHalfEven(f float64) int64 {
	r := math.RoundToEven(f)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt64:
		return math.MaxInt64
	case r <= math.MinInt64:
		return math.MinInt64
	}
	return int64(r)
}
