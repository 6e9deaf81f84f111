// Package web provides an HTTP status server for the door-lock daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	gmux "github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/door-lock/internal/audit"
	"github.com/sweeney/door-lock/internal/metrics"
	"github.com/sweeney/door-lock/internal/status"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventSource reads recent access log entries.
type EventSource interface {
	Recent(ctx context.Context, n int) ([]audit.Entry, error)
}

// Options wires the optional endpoints. Nil fields disable them.
type Options struct {
	Events   EventSource
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	events     EventSource
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker, events: opts.Events}

	router := gmux.NewRouter()
	get := http.MethodGet
	handle := func(path string, h http.Handler) {
		if opts.Metrics != nil {
			h = opts.Metrics.Instrument(path, h)
		}
		router.Handle(path, h).Methods(get)
	}

	handle("/", http.HandlerFunc(s.handleIndex))
	handle("/index.html", http.HandlerFunc(s.handleIndex))
	handle("/index.json", http.HandlerFunc(s.handleJSON))
	handle("/events.json", http.HandlerFunc(s.handleEvents))
	if opts.Gatherer != nil {
		handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// EventsJSON is the /events.json response body.
type EventsJSON struct {
	Events []audit.Entry `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "access log disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventLimit)
	}

	entries, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "access log unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(EventsJSON{Events: entries})
}
