// Package web serves the dashboard page, chart images, the JSON API and the
// live event stream.
package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gtnh-items-tracker/internal/monitor"
	"gtnh-items-tracker/internal/pipeline"
	"gtnh-items-tracker/internal/render"
	"gtnh-items-tracker/internal/session"
	"gtnh-items-tracker/internal/table"
)

const sessionCookie = "items_tracker_session"

// Refresher schedules an out-of-band pipeline run.
type Refresher interface {
	Refresh()
}

// HealthReporter exposes the row store health as seen by periodic pings.
type HealthReporter interface {
	Healthy() bool
	LastCheck() time.Time
	LastError() string
}

// Deps are the collaborators the server reads from. State, Sessions and
// Assets are required.
type Deps struct {
	State     *pipeline.State
	Refresher Refresher
	Events    *pipeline.EventBus
	History   *pipeline.History
	Sessions  *session.Store
	Health    HealthReporter
	Metrics   *monitor.Metrics
	Assets    fs.FS
}

// Options tune page behaviour.
type Options struct {
	RefreshInterval time.Duration
	KPIWindow       time.Duration
	SessionTTL      time.Duration
	Chart           render.ChartOptions
}

// Server is the dashboard HTTP handler.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	page   *template.Template
	static http.Handler

	// Rendered SVGs for the current snapshot version.
	chartsMu      sync.Mutex
	charts        map[string][]byte
	chartsVersion uint64
}

// NewServer parses the page template from deps.Assets and returns the handler.
func NewServer(deps Deps, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.State == nil || deps.Sessions == nil || deps.Assets == nil {
		return nil, fmt.Errorf("web: state, sessions and assets are required")
	}
	page, err := template.ParseFS(deps.Assets, "index.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse page template: %w", err)
	}
	return &Server{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		page:   page,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(deps.Assets))),
		charts: make(map[string][]byte),
	}, nil
}

// ServeHTTP routes requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, APIPrefix+"/") {
		s.serveAPI(w, r)
		return
	}

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		s.handlePage(w, r)
	case r.URL.Path == "/chart.svg" && r.Method == http.MethodGet:
		s.handleChart(w, r)
	case strings.HasPrefix(r.URL.Path, "/static/") && r.Method == http.MethodGet:
		s.handleStatic(w, r)
	case r.URL.Path == "/events" && r.Method == http.MethodGet:
		s.handleSSEEvents(w, r)
	case r.URL.Path == "/metrics" && r.Method == http.MethodGet:
		s.handleMetrics(w, r)
	case r.URL.Path == "/healthz":
		s.handleHealthz(w, r)
	case r.URL.Path == "/healthz/rowstore":
		s.handleHealthzRowStore(w, r)
	default:
		http.NotFound(w, r)
	}
}

// session returns the caller's session, issuing a cookie for new ones.
func (s *Server) session(w http.ResponseWriter, r *http.Request) session.State {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	st := s.deps.Sessions.Get(id)
	if st.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    st.ID,
			Path:     "/",
			MaxAge:   int(s.opts.SessionTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return st
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	status := http.StatusOK
	var page Page
	snap, ok := s.deps.State.Current()
	if !ok {
		page = Page{
			Title:   PageTitle,
			Heading: PageHeading,
			Banner:  &table.Halt{Level: table.LevelWarning, Message: "Waiting for the first data refresh."},
		}
	} else {
		want := r.URL.Query().Get("item")
		if want == "" {
			want = sess.Selected
		}
		selected := session.Resolve(snap.Items, want)
		if selected != "" {
			s.deps.Sessions.Select(sess.ID, selected)
		}

		page = BuildPage(snap, selected, s.now().UTC(), s.opts.KPIWindow)
		if snap.Err != "" {
			status = http.StatusBadGateway
		}
	}
	page.RefreshMs = s.opts.RefreshInterval.Milliseconds()

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, page); err != nil {
		s.logger.Error("failed to render page", "err", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")

	snap, ok := s.deps.State.Current()
	if !ok || snap.Table == nil {
		http.Error(w, "no chart data available", http.StatusServiceUnavailable)
		return
	}
	if !contains(snap.Items, item) {
		http.NotFound(w, r)
		return
	}
	track := snap.Table.ForItem(item)
	if len(track) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	svg, err := s.chartSVG(snap.Version, item, track)
	if err != nil {
		s.logger.Error("failed to render chart", "item", item, "err", err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(s.opts.RefreshInterval/time.Second)))
	_, _ = w.Write(svg)
}

// chartSVG renders item's chart once per snapshot version.
func (s *Server) chartSVG(version uint64, item string, track []table.Record) ([]byte, error) {
	s.chartsMu.Lock()
	defer s.chartsMu.Unlock()

	if version > s.chartsVersion {
		s.charts = make(map[string][]byte)
		s.chartsVersion = version
	}
	if svg, ok := s.charts[item]; ok && version == s.chartsVersion {
		return svg, nil
	}

	var buf bytes.Buffer
	if err := render.LineChart(&buf, render.ChartTitle(item), render.PointsFromRecords(track), s.opts.Chart); err != nil {
		return nil, err
	}
	if version == s.chartsVersion {
		s.charts[item] = buf.Bytes()
	}
	return buf.Bytes(), nil
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	// The page template is rendered, never served raw.
	switch path.Ext(r.URL.Path) {
	case ".css", ".js", ".svg", ".png", ".ico":
		s.static.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		http.Error(w, "event bus not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	eventCh := s.deps.Events.Subscribe()
	defer s.deps.Events.Unsubscribe(eventCh)

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sseData, err := pipeline.FormatSSEEvent(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte(sseData)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil && !s.deps.Health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("rowstore unhealthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHealthzRowStore(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.deps.Health == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy":    true,
			"last_check": s.now().Format(time.RFC3339),
		})
		return
	}

	healthy := s.deps.Health.Healthy()
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]any{
		"healthy":    healthy,
		"last_check": s.deps.Health.LastCheck().Format(time.RFC3339),
	}
	if lastError := s.deps.Health.LastError(); lastError != "" {
		response["last_error"] = lastError
	}
	_ = json.NewEncoder(w).Encode(response)
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
