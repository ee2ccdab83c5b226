// Package render draws quantity charts and formats metric values.
package render

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"gtnh-items-tracker/internal/table"
)

// ErrNoPoints is returned when a chart would have nothing to draw.
var ErrNoPoints = errors.New("render: no points")

// Point is one (timestamp, quantity) sample.
type Point struct {
	T time.Time `json:"t"`
	Y float64   `json:"y"`
}

// PointsFromRecords maps cleaned records to chart points.
func PointsFromRecords(records []table.Record) []Point {
	out := make([]Point, len(records))
	for i, r := range records {
		out[i] = Point{T: r.Datetime, Y: r.Quantity}
	}
	return out
}

// ChartTitle is the title used for an item's quantity chart.
func ChartTitle(item string) string {
	return "Quantity of: " + item
}

// FormatInt renders n with thousands separators, e.g. -1,234.
func FormatInt(n int64) string {
	return humanize.Comma(n)
}

// ChartOptions controls chart size. Zero values use the defaults.
type ChartOptions struct {
	Width  int
	Height int
}

const (
	defaultWidth  = 1024
	defaultHeight = 400
)

var lineColor = drawing.ColorFromHex("3b82f6")

// LineChart writes an SVG line chart of points to w.
func LineChart(w io.Writer, title string, points []Point, opts ChartOptions) error {
	if len(points) == 0 {
		return ErrNoPoints
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.T
		ys[i] = p.Y
	}

	graph := chart.Chart{
		Title:  title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:           "datetime",
			ValueFormatter: timeFormatter(xs),
		},
		YAxis: chart.YAxis{
			Name:           "quantity",
			ValueFormatter: quantityFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: title,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}

	// go-chart cannot scale an axis whose range is a single value.
	minT, maxT := span(xs)
	if minT.Equal(maxT) {
		graph.XAxis.Range = &chart.ContinuousRange{
			Min: timeToFloat(minT.Add(-time.Hour)),
			Max: timeToFloat(maxT.Add(time.Hour)),
		}
	}
	minY, maxY := ys[0], ys[0]
	for _, y := range ys {
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	if minY == maxY {
		graph.YAxis.Range = &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}

	return graph.Render(chart.SVG, w)
}

func span(ts []time.Time) (time.Time, time.Time) {
	lo, hi := ts[0], ts[0]
	for _, t := range ts {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi
}

func timeToFloat(t time.Time) float64 {
	return float64(t.UnixNano())
}

// timeFormatter picks a tick layout from the span of the data.
func timeFormatter(ts []time.Time) chart.ValueFormatter {
	lo, hi := span(ts)
	layout := "Jan 02 15:04"
	if hi.Sub(lo) > 7*24*time.Hour {
		layout = "2006-01-02"
	}
	return func(v interface{}) string {
		switch x := v.(type) {
		case float64:
			return time.Unix(0, int64(x)).UTC().Format(layout)
		case time.Time:
			return x.UTC().Format(layout)
		default:
			return ""
		}
	}
}

// quantityFormatter labels y-axis ticks. Narrow ranges produce fractional
// ticks, which keep two decimals instead of collapsing onto the integer.
func quantityFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return humanize.Comma(int64(f))
	}
	return humanize.Commaf(math.Round(f*100) / 100)
}
