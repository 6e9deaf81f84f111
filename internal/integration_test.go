package internal

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/door-lock/internal/audit"
	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/mqtt"
	"github.com/sweeney/door-lock/internal/radar"
	"github.com/sweeney/door-lock/internal/status"
	"github.com/sweeney/door-lock/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogicConfig() logic.Config {
	return logic.Config{
		ButtonPin:         4,
		SampleInterval:    2 * time.Second,
		HoldOver:          60 * time.Second,
		ProximityCm:       50,
		AutoOpenCooldown:  7 * time.Second,
		OpenDuration:      3 * time.Second,
		Debounce:          40 * time.Millisecond,
		LongPress:         2 * time.Second,
		DoublePressWindow: 300 * time.Millisecond,
	}
}

// rig wires the real packages together the same way the daemon does, with
// fakes only at the hardware and broker edges.
type rig struct {
	t       *testing.T
	ctrl    *logic.Controller
	feed    *radar.Feed
	button  *gpio.FakeReader
	relay   *gpio.FakeOutput
	act     *gpio.Actuator
	pub     *mqtt.FakePublisher
	store   *audit.Store
	tracker *status.Tracker
	now     time.Time
}

func newRig(t *testing.T, buttonSamples []bool) *rig {
	t.Helper()
	store, err := audit.Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	relay := gpio.NewFakeOutput()
	return &rig{
		t:       t,
		ctrl:    logic.NewController(testLogicConfig(), startTime),
		feed:    radar.NewFeed(10 * time.Second),
		button:  gpio.NewFakeReader(buttonSamples),
		relay:   relay,
		act:     gpio.NewActuator(relay, 5*time.Second),
		pub:     mqtt.NewFakePublisher(),
		store:   store,
		tracker: status.NewTracker(startTime, status.Config{PollMs: 20, OpenMs: 3000, ProximityCm: 50}),
		now:     startTime,
	}
}

// step runs one 20ms poll cycle.
func (r *rig) step(remote *logic.LockCommand) {
	r.t.Helper()
	r.now = r.now.Add(20 * time.Millisecond)

	pressed, err := r.button.Read()
	if err != nil {
		r.t.Fatalf("button read: %v", err)
	}
	sample, connected := r.feed.Take(r.now)

	for _, e := range r.ctrl.Process(logic.Input{
		Time:           r.now,
		Pressed:        pressed,
		Sample:         sample,
		RadarConnected: connected,
		Remote:         remote,
	}) {
		switch e.Type {
		case logic.EventUnlocking:
			if err := r.act.Energize(e.Timestamp); err != nil {
				r.t.Fatalf("energize: %v", err)
			}
			r.pub.PublishLock(e.Current, e.Target)
		case logic.EventLocked:
			if err := r.act.Release(); err != nil {
				r.t.Fatalf("release: %v", err)
			}
			r.pub.PublishLock(e.Current, e.Target)
		case logic.EventLockMirrored:
			r.pub.PublishLock(e.Current, e.Target)
		case logic.EventMotionOn, logic.EventMotionOff:
			r.pub.PublishMotion(e.Motion)
		}
		if err := r.pub.Publish(e); err != nil {
			r.t.Fatalf("publish: %v", err)
		}
		switch e.Type {
		case logic.EventUnlocking, logic.EventLocked, logic.EventLockMirrored, logic.EventRequestIgnored:
			if err := r.store.Record(context.Background(), audit.FromEvent(e)); err != nil {
				r.t.Fatalf("record: %v", err)
			}
		}
	}
	if _, err := r.act.Check(r.now); err != nil {
		r.t.Fatalf("watchdog: %v", err)
	}

	r.tracker.Update(status.LockFrom(r.ctrl.Lock()), r.ctrl.Presence(), connected,
		r.ctrl.ButtonBaselined(), r.ctrl.EventCountsSnapshot())
	r.tracker.SetRelay(r.act.Energized())
}

func (r *rig) run(d time.Duration) {
	for end := r.now.Add(d); r.now.Before(end); {
		r.step(nil)
	}
}

func (r *rig) serve() string {
	r.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		r.t.Fatalf("listen: %v", err)
	}
	srv := web.New("", r.tracker, web.Options{Events: r.store})
	go srv.Serve(ln)
	r.t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return "http://" + ln.Addr().String()
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func released(n int) []bool {
	return make([]bool, n)
}

// TestIntegrationRadarAutoOpen follows a radar frame from the wire through
// the controller to the relay, the HomeKit mirror, the access log and the
// status page.
func TestIntegrationRadarAutoOpen(t *testing.T) {
	r := newRig(t, released(1))

	sample, err := radar.ParseReading([]byte(`{"presence":true,"moving":true,"moving_distance_cm":35,"moving_energy":80}`))
	if err != nil {
		t.Fatalf("parse reading: %v", err)
	}
	r.feed.Push(sample, startTime)

	// Halfway through the open window
	r.run(1500 * time.Millisecond)

	if !r.relay.On() {
		t.Fatal("relay should be energized during the open window")
	}
	if got := r.tracker.Snapshot().Lock.Phase; got != logic.PhaseOpening {
		t.Errorf("tracker phase: got %s, want OPENING", got)
	}

	r.run(2 * time.Second)

	if r.relay.On() {
		t.Error("relay should be released after the open window")
	}
	if r.relay.Rises() != 1 {
		t.Errorf("expected one energize, got %d", r.relay.Rises())
	}

	wantTypes := []logic.EventType{logic.EventMotionOn, logic.EventUnlocking, logic.EventLocked}
	if len(r.pub.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(r.pub.Events))
	}
	for i, want := range wantTypes {
		if r.pub.Events[i].Type != want {
			t.Errorf("event %d: expected %s, got %s", i, want, r.pub.Events[i].Type)
		}
	}

	// The wire payload of the open carries its source
	var payload struct {
		Lock struct {
			Event   string `json:"event"`
			Source  string `json:"source"`
			Current string `json:"current"`
			Target  string `json:"target"`
		} `json:"lock"`
	}
	if err := json.Unmarshal(r.pub.Payloads[1], &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Lock.Event != "UNLOCKING" || payload.Lock.Source != "proximity" {
		t.Errorf("unexpected payload: %+v", payload.Lock)
	}
	if payload.Lock.Current != "UNLOCKED" || payload.Lock.Target != "OPEN" {
		t.Errorf("unexpected lock fields: %+v", payload.Lock)
	}

	if len(r.pub.Locks) != 2 || r.pub.Locks[1].Current != logic.LockLocked {
		t.Errorf("expected unlocked then locked mirror, got %+v", r.pub.Locks)
	}
	if len(r.pub.Motions) != 1 || !r.pub.Motions[0] {
		t.Errorf("expected motion on mirror, got %v", r.pub.Motions)
	}

	entries, err := r.store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 access log entries, got %d", len(entries))
	}
	if entries[0].Kind != "LOCKED" || entries[1].Kind != "UNLOCKING" {
		t.Errorf("expected newest first, got %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[1].Source != "proximity" {
		t.Errorf("expected proximity source in log, got %q", entries[1].Source)
	}

	base := r.serve()

	var st status.StatusJSON
	getJSON(t, base+"/index.json", &st)
	if st.Status.Lock.Phase != "LOCKED" || st.Status.Lock.Relay {
		t.Errorf("status lock: %+v", st.Status.Lock)
	}
	if !st.Status.Presence.Motion || !st.Status.Presence.RadarConnected {
		t.Errorf("status presence: %+v", st.Status.Presence)
	}
	if st.Status.Counts.OpensProximity != 1 {
		t.Errorf("expected 1 proximity open, got %d", st.Status.Counts.OpensProximity)
	}

	var ev struct {
		Events []audit.Entry `json:"events"`
	}
	getJSON(t, base+"/events.json?limit=1", &ev)
	if len(ev.Events) != 1 || ev.Events[0].Kind != "LOCKED" {
		t.Errorf("events.json: %+v", ev.Events)
	}
}

// TestIntegrationButtonAndRemoteContention presses the button while a remote
// open arrives in the same window. Only one cycle runs; the other request
// is logged as ignored.
func TestIntegrationButtonAndRemoteContention(t *testing.T) {
	// 200ms idle, 100ms press, released
	samples := append(released(10), true, true, true, true, true, false)
	r := newRig(t, samples)

	r.run(800 * time.Millisecond)
	if r.relay.Rises() != 1 {
		t.Fatalf("button press should have opened the door, rises %d", r.relay.Rises())
	}

	open := logic.CommandOpen
	r.step(&open)
	closeCmd := logic.CommandClose
	r.step(&closeCmd)

	r.run(3 * time.Second)

	if r.relay.Rises() != 1 {
		t.Errorf("expected a single cycle, got %d", r.relay.Rises())
	}

	entries, err := r.store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	kinds := map[string]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	if kinds["UNLOCKING"] != 1 || kinds["LOCKED"] != 1 || kinds["REQUEST_IGNORED"] != 2 {
		t.Errorf("unexpected access log: %v", kinds)
	}

	counts := r.ctrl.EventCountsSnapshot()
	if counts.OpensButton != 1 || counts.OpensRemote != 0 || counts.Ignored != 2 {
		t.Errorf("unexpected counts: %+v", counts)
	}

	// Once locked, a close request only re-mirrors
	r.step(&closeCmd)
	last := r.pub.Locks[len(r.pub.Locks)-1]
	if last.Current != logic.LockLocked || last.Target != logic.CommandClose {
		t.Errorf("expected locked mirror, got %+v", last)
	}
	if r.relay.Rises() != 1 {
		t.Error("close must not energize the relay")
	}
}

// TestIntegrationRadarAvailability checks that an offline radar node never
// opens the door even with a close target in its last reading.
func TestIntegrationRadarAvailability(t *testing.T) {
	r := newRig(t, released(1))

	sample, err := radar.ParseReading([]byte(`{"presence":true,"moving":true,"moving_distance_cm":20,"moving_energy":90}`))
	if err != nil {
		t.Fatalf("parse reading: %v", err)
	}
	r.feed.SetAvailability("offline")
	r.feed.Push(sample, startTime)

	r.run(5 * time.Second)

	if r.relay.Rises() != 0 {
		t.Errorf("offline radar must not open the door, rises %d", r.relay.Rises())
	}
	if r.tracker.Snapshot().RadarConnected {
		t.Error("tracker should show radar disconnected")
	}
}
