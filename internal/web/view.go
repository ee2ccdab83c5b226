package web

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gtnh-items-tracker/internal/kpi"
	"gtnh-items-tracker/internal/pipeline"
	"gtnh-items-tracker/internal/render"
	"gtnh-items-tracker/internal/table"
)

const (
	PageTitle   = "GTNH - Items Tracker"
	PageHeading = "GTNH - Applied Energistics Items Track"
)

// ChartRef points the page at one rendered chart.
type ChartRef struct {
	Item  string
	Title string
	URL   string
}

// Page is the dashboard view model for one request.
type Page struct {
	Title     string
	Heading   string
	Version   uint64
	CheckedAt time.Time
	RefreshMs int64

	Banner *table.Halt

	Items    []string
	Selected string

	ShowMetrics   bool
	WindowLabel   string
	Note          string
	AvgPerHour    string
	TotalProduced string
	KPI           kpi.KPI

	Primary   *ChartRef
	AllCharts []ChartRef
}

// BuildPage assembles the view for snap with selected as the chosen item.
// selected must already be resolved against snap.Items.
func BuildPage(snap pipeline.Snapshot, selected string, now time.Time, window time.Duration) Page {
	p := Page{
		Title:     PageTitle,
		Heading:   PageHeading,
		Version:   snap.Version,
		CheckedAt: snap.CheckedAt,
		Items:     snap.Items,
		Selected:  selected,
	}

	switch {
	case snap.Err != "":
		p.Banner = &table.Halt{Level: table.LevelError, Message: "Failed to load data: " + snap.Err}
		p.Items = nil
		return p
	case snap.Halt != nil:
		h := *snap.Halt
		p.Banner = &h
		return p
	}

	p.ShowMetrics = true
	p.WindowLabel = windowLabel(window)

	track := snap.Table.ForItem(selected)
	if len(track) == 0 {
		p.Note = fmt.Sprintf("No rows found for %s.", selected)
	} else {
		p.Primary = &ChartRef{Item: selected, Title: render.ChartTitle(selected), URL: chartURL(selected, snap.Version)}
	}

	p.KPI = kpi.FromRecords(track, now, window)
	p.AvgPerHour = render.FormatInt(p.KPI.AvgPerHour)
	p.TotalProduced = render.FormatInt(p.KPI.TotalProduced)

	for _, item := range snap.Items {
		if len(snap.Table.ForItem(item)) == 0 {
			continue
		}
		p.AllCharts = append(p.AllCharts, ChartRef{
			Item:  item,
			Title: render.ChartTitle(item),
			URL:   chartURL(item, snap.Version),
		})
	}
	return p
}

// windowLabel renders "Past 24-hour metrics" for a 24h window.
func windowLabel(window time.Duration) string {
	if window <= 0 {
		window = kpi.DefaultWindow
	}
	if window%time.Hour == 0 {
		return fmt.Sprintf("Past %d-hour metrics", int64(window/time.Hour))
	}
	return fmt.Sprintf("Past %s metrics", window)
}

// Item names may contain '/', so they travel as a query parameter.
func chartURL(item string, version uint64) string {
	v := url.Values{}
	v.Set("item", item)
	v.Set("v", strconv.FormatUint(version, 10))
	return "/chart.svg?" + v.Encode()
}
