package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"gtnh-items-tracker/internal/table"
)

func TestQuantityFormatter(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{0.0, "0"},
		{0.5, "0.5"},
		{1.5, "1.5"},
		{2.0, "2"},
		{1234.0, "1,234"},
		{1234.567, "1,234.57"},
		{-2.25, "-2.25"},
		{"x", ""},
	}
	for _, tt := range tests {
		if got := quantityFormatter(tt.in); got != tt.want {
			t.Errorf("quantityFormatter(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{12, "12"},
		{1234, "1,234"},
		{-20, "-20"},
		{-1234567, "-1,234,567"},
	}

	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChartTitle(t *testing.T) {
	if got := ChartTitle("Iron Ingot"); got != "Quantity of: Iron Ingot" {
		t.Errorf("ChartTitle() = %q", got)
	}
}

func TestLineChart_RendersSVG(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := PointsFromRecords([]table.Record{
		{Item: "A", Quantity: 10, Datetime: base},
		{Item: "A", Quantity: 15, Datetime: base.Add(time.Hour)},
		{Item: "A", Quantity: 22, Datetime: base.Add(2 * time.Hour)},
	})

	var buf bytes.Buffer
	if err := LineChart(&buf, ChartTitle("A"), points, ChartOptions{}); err != nil {
		t.Fatalf("LineChart error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Errorf("output is not svg: %.80s", out)
	}
	if !strings.Contains(out, "Quantity of: A") {
		t.Error("title missing from svg")
	}
}

func TestLineChart_SinglePoint(t *testing.T) {
	points := []Point{{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Y: 5}}

	var buf bytes.Buffer
	if err := LineChart(&buf, "one", points, ChartOptions{Width: 400, Height: 200}); err != nil {
		t.Fatalf("LineChart error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty output")
	}
}

func TestLineChart_NoPoints(t *testing.T) {
	var buf bytes.Buffer
	err := LineChart(&buf, "none", nil, ChartOptions{})
	if !errors.Is(err, ErrNoPoints) {
		t.Errorf("err = %v, want ErrNoPoints", err)
	}
}
