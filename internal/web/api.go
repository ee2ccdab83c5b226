package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gtnh-items-tracker/internal/kpi"
	"gtnh-items-tracker/internal/pipeline"
	"gtnh-items-tracker/internal/render"
	"gtnh-items-tracker/internal/session"
	"gtnh-items-tracker/internal/table"
)

// APIPrefix is the base path for all JSON endpoints.
const APIPrefix = "/api/v1"

// ItemsResponse lists the distinct items of the current snapshot.
type ItemsResponse struct {
	Version uint64   `json:"version"`
	Items   []string `json:"items"`
}

// KPIResponse carries one item's metrics over Window.
type KPIResponse struct {
	Version uint64 `json:"version"`
	Item    string `json:"item"`
	Window  string `json:"window"`
	kpi.KPI
	AvgPerHourDisplay    string `json:"avg_per_hour_display"`
	TotalProducedDisplay string `json:"total_produced_display"`
}

// SeriesResponse carries the chart points of one item.
type SeriesResponse struct {
	Version uint64         `json:"version"`
	Item    string         `json:"item"`
	Title   string         `json:"title"`
	Points  []render.Point `json:"points"`
}

// RowStoreStatus is the latest ping result.
type RowStoreStatus struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// StatusResponse summarises the latest pipeline run.
type StatusResponse struct {
	Outcome    string          `json:"outcome"`
	Version    uint64          `json:"version"`
	RunAt      *time.Time      `json:"run_at,omitempty"`
	CheckedAt  *time.Time      `json:"checked_at,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Since      *time.Time      `json:"since,omitempty"`
	Halt       *table.Halt     `json:"halt,omitempty"`
	Error      string          `json:"error,omitempty"`
	Items      int             `json:"items"`
	Rows       int             `json:"rows"`
	Dropped    int             `json:"dropped"`
	Sessions   int             `json:"sessions"`
	RowStore   *RowStoreStatus `json:"rowstore,omitempty"`
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)

	switch {
	case path == "/items" && r.Method == http.MethodGet:
		s.handleItems(w, r)
	case path == "/kpis" && r.Method == http.MethodGet:
		s.handleKPIs(w, r)
	case path == "/series" && r.Method == http.MethodGet:
		s.handleSeries(w, r)
	case path == "/status" && r.Method == http.MethodGet:
		s.handleStatus(w, r)
	case path == "/runs" && r.Method == http.MethodGet:
		s.handleRuns(w, r)
	case path == "/refresh" && r.Method == http.MethodPost:
		s.handleRefresh(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.usableSnapshot(w, false)
	if !ok {
		return
	}
	items := snap.Items
	if items == nil {
		items = []string{}
	}
	s.writeJSON(w, ItemsResponse{Version: snap.Version, Items: items})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.usableSnapshot(w, true)
	if !ok {
		return
	}
	item, ok := s.resolveItem(w, r, snap)
	if !ok {
		return
	}
	window := parseWindow(r, s.opts.KPIWindow)

	k := kpi.Compute(snap.Table, item, s.now().UTC(), window)
	s.writeJSON(w, KPIResponse{
		Version:              snap.Version,
		Item:                 item,
		Window:               window.String(),
		KPI:                  k,
		AvgPerHourDisplay:    render.FormatInt(k.AvgPerHour),
		TotalProducedDisplay: render.FormatInt(k.TotalProduced),
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.usableSnapshot(w, true)
	if !ok {
		return
	}
	item, ok := s.resolveItem(w, r, snap)
	if !ok {
		return
	}
	s.writeJSON(w, SeriesResponse{
		Version: snap.Version,
		Item:    item,
		Title:   render.ChartTitle(item),
		Points:  render.PointsFromRecords(snap.Table.ForItem(item)),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Outcome:  "pending",
		Sessions: s.deps.Sessions.Len(),
	}
	if snap, ok := s.deps.State.Current(); ok {
		resp.Outcome = string(snap.Outcome())
		resp.Version = snap.Version
		resp.RunAt = &snap.RunAt
		resp.CheckedAt = &snap.CheckedAt
		resp.DurationMs = snap.Duration.Milliseconds()
		if !snap.Since.IsZero() {
			resp.Since = &snap.Since
		}
		resp.Halt = snap.Halt
		resp.Error = snap.Err
		resp.Items = len(snap.Items)
		resp.Rows = snap.Table.Len()
		if snap.Table != nil {
			resp.Dropped = snap.Table.Dropped
		}
	}
	if s.deps.Health != nil {
		resp.RowStore = &RowStoreStatus{
			Healthy:   s.deps.Health.Healthy(),
			LastCheck: s.deps.Health.LastCheck(),
			LastError: s.deps.Health.LastError(),
		}
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.writeJSON(w, map[string]any{"runs": s.deps.History.List(limit)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "refresher not available")
		return
	}
	s.deps.Refresher.Refresh()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "scheduled"})
}

// usableSnapshot writes an error response and returns false when there is no
// snapshot yet, the last run failed, or (with needTable) the run halted.
func (s *Server) usableSnapshot(w http.ResponseWriter, needTable bool) (pipeline.Snapshot, bool) {
	snap, ok := s.deps.State.Current()
	switch {
	case !ok:
		s.writeError(w, http.StatusServiceUnavailable, "no data loaded yet")
		return snap, false
	case snap.Err != "":
		s.writeError(w, http.StatusBadGateway, snap.Err)
		return snap, false
	case snap.Halt != nil && (needTable || len(snap.Items) == 0):
		s.writeError(w, http.StatusServiceUnavailable, snap.Halt.Message)
		return snap, false
	}
	return snap, true
}

// resolveItem picks ?item= when it is a known item, or the first item when
// the parameter is absent.
func (s *Server) resolveItem(w http.ResponseWriter, r *http.Request, snap pipeline.Snapshot) (string, bool) {
	want := r.URL.Query().Get("item")
	if want != "" && !contains(snap.Items, want) {
		s.writeError(w, http.StatusNotFound, "unknown item: "+want)
		return "", false
	}
	return session.Resolve(snap.Items, want), true
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parseWindow(r *http.Request, def time.Duration) time.Duration {
	v := r.URL.Query().Get("window")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}
