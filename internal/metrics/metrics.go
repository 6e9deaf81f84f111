// Package metrics exposes lock activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/door-lock/internal/logic"
)

// Metrics holds every collector the daemon updates.
type Metrics struct {
	opens            *prometheus.CounterVec
	ignored          *prometheus.CounterVec
	buttons          *prometheus.CounterVec
	motion           *prometheus.CounterVec
	watchdogReleases prometheus.Counter
	auditDropped     prometheus.Counter
	phase            prometheus.Gauge
	motionPresent    prometheus.Gauge
	radarConnected   prometheus.Gauge
	mqttConnected    prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorlock_opens_total",
			Help: "Open cycles started, by source.",
		}, []string{"source"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorlock_requests_ignored_total",
			Help: "Lock requests ignored because a cycle was active, by source.",
		}, []string{"source"}),
		buttons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorlock_button_presses_total",
			Help: "Classified button interactions, by class.",
		}, []string{"class"}),
		motion: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorlock_motion_transitions_total",
			Help: "Motion characteristic transitions, by direction.",
		}, []string{"state"}),
		watchdogReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorlock_relay_watchdog_releases_total",
			Help: "Times the relay watchdog forced the relay off.",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorlock_audit_dropped_total",
			Help: "Access log entries dropped because the writer queue was full.",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorlock_opening",
			Help: "1 while an open cycle is in progress, 0 when locked.",
		}),
		motionPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorlock_motion_present",
			Help: "Current motion characteristic (0/1).",
		}),
		radarConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorlock_radar_connected",
			Help: "Whether radar readings are fresh (0/1).",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorlock_mqtt_connected",
			Help: "Whether the broker connection is up (0/1).",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorlock_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doorlock_http_request_duration_seconds",
			Help:    "HTTP request durations, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.opens,
		m.ignored,
		m.buttons,
		m.motion,
		m.watchdogReleases,
		m.auditDropped,
		m.phase,
		m.motionPresent,
		m.radarConnected,
		m.mqttConnected,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// Observe updates the counters for one controller event.
func (m *Metrics) Observe(e logic.Event) {
	switch e.Type {
	case logic.EventUnlocking:
		m.opens.WithLabelValues(string(e.Source)).Inc()
		m.phase.Set(1)
	case logic.EventLocked:
		m.phase.Set(0)
	case logic.EventRequestIgnored:
		m.ignored.WithLabelValues(string(e.Source)).Inc()
	case logic.EventButton:
		m.buttons.WithLabelValues(string(e.Button.Class)).Inc()
	case logic.EventMotionOn:
		m.motion.WithLabelValues("on").Inc()
		m.motionPresent.Set(1)
	case logic.EventMotionOff:
		m.motion.WithLabelValues("off").Inc()
		m.motionPresent.Set(0)
	}
}

// WatchdogRelease counts a forced relay release.
func (m *Metrics) WatchdogRelease() {
	m.watchdogReleases.Inc()
}

// AuditDropped counts an access log entry that could not be queued.
func (m *Metrics) AuditDropped() {
	m.auditDropped.Inc()
}

// SetConnectivity records the radar and broker link state.
func (m *Metrics) SetConnectivity(radar, mqtt bool) {
	boolGauge(m.radarConnected, radar)
	boolGauge(m.mqttConnected, mqtt)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Instrument wraps next, counting requests under the given route label.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
