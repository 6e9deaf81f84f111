package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/door-lock/internal/audit"
	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/metrics"
	"github.com/sweeney/door-lock/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeEvents struct {
	entries []audit.Entry
	err     error
	asked   int
}

func (f *fakeEvents) Recent(_ context.Context, n int) ([]audit.Entry, error) {
	f.asked = n
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.entries) {
		return f.entries[:n], nil
	}
	return f.entries, nil
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		PollMs:      20,
		DebounceMs:  40,
		HeartbeatMs: 900000,
		OpenMs:      3000,
		ProximityCm: 50,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func openingLock() status.Lock {
	return status.Lock{
		Phase:    logic.PhaseOpening,
		Current:  logic.LockUnlocked,
		Target:   logic.CommandOpen,
		Session:  &logic.Session{OpenedAt: start, Source: logic.SourceButton},
		Deadline: start.Add(3 * time.Second),
	}
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode JSON: %v", err)
		}
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Update(openingLock(), logic.PresenceState{MotionPresent: true}, true, true,
		logic.EventCounts{OpensButton: 5, Ignored: 2})
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/index.json", &sj)

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if sj.Status.Lock.Phase != "OPENING" {
		t.Errorf("Lock.Phase: got %q, want OPENING", sj.Status.Lock.Phase)
	}
	if sj.Status.Lock.Source != "button" {
		t.Errorf("Lock.Source: got %q, want button", sj.Status.Lock.Source)
	}
	if !sj.Status.Presence.Motion || !sj.Status.Presence.RadarConnected {
		t.Errorf("Presence: got %+v", sj.Status.Presence)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.OpensButton != 5 || sj.Status.Counts.Ignored != 2 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.Config.OpenMs != 3000 {
		t.Errorf("Config.OpenMs: got %d, want 3000", sj.Status.Config.OpenMs)
	}
}

func TestJSONLockedBeforeAnyUpdate(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	var sj status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj)

	if sj.Status.Lock.Phase != "LOCKED" || sj.Status.Lock.Current != "LOCKED" {
		t.Errorf("Lock: got %+v, want locked", sj.Status.Lock)
	}
	if sj.Status.Ready {
		t.Error("expected Ready=false initially")
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Update(openingLock(), logic.PresenceState{}, false, true, logic.EventCounts{})
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q, want text/html", path, ct)
		}
		for _, want := range []string{"OPENING", "UNLOCKED / OPEN", "Opened by", "MyNet"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestPostNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+"/index.json", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	events := &fakeEvents{entries: []audit.Entry{
		{ID: "01B", At: start.Add(time.Second), Kind: "LOCKED", Source: "remote"},
		{ID: "01A", At: start, Kind: "UNLOCKING", Source: "remote"},
	}}
	ts, _ := newTestServer(t, Options{Events: events})

	var ej EventsJSON
	getJSON(t, ts.URL+"/events.json", &ej)
	if events.asked != defaultEventLimit {
		t.Errorf("limit: got %d, want %d", events.asked, defaultEventLimit)
	}
	if len(ej.Events) != 2 || ej.Events[0].Kind != "LOCKED" {
		t.Errorf("events: got %+v", ej.Events)
	}

	getJSON(t, ts.URL+"/events.json?limit=1", &ej)
	if len(ej.Events) != 1 {
		t.Errorf("limit=1: got %d events", len(ej.Events))
	}

	getJSON(t, ts.URL+"/events.json?limit=100000", nil)
	if events.asked != maxEventLimit {
		t.Errorf("limit clamp: got %d, want %d", events.asked, maxEventLimit)
	}

	resp := getJSON(t, ts.URL+"/events.json?limit=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status: got %d, want 400", resp.StatusCode)
	}
}

func TestEventsEndpointEmpty(t *testing.T) {
	ts, _ := newTestServer(t, Options{Events: &fakeEvents{}})

	resp, err := http.Get(ts.URL + "/events.json")
	if err != nil {
		t.Fatalf("GET /events.json: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if strings.TrimSpace(string(body)) != `{"events":[]}` {
		t.Errorf("body: got %s", body)
	}
}

func TestEventsEndpointErrors(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	resp := getJSON(t, ts.URL+"/events.json", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("disabled status: got %d, want 503", resp.StatusCode)
	}

	ts, _ = newTestServer(t, Options{Events: &fakeEvents{err: errors.New("disk gone")}})
	resp = getJSON(t, ts.URL+"/events.json", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("error status: got %d, want 500", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Observe(logic.Event{Type: logic.EventUnlocking, Source: logic.SourceRemote})
	ts, _ := newTestServer(t, Options{Gatherer: reg, Metrics: m})

	// one instrumented request first, so the counter exists
	getJSON(t, ts.URL+"/index.json", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{
		`doorlock_opens_total{source="remote"} 1`,
		`doorlock_http_requests_total{route="/index.json",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	ts, _ := newTestServer(t, Options{})
	resp := getJSON(t, ts.URL+"/metrics", nil)
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
