package main

import (
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-lock/internal/audit"
	"github.com/sweeney/door-lock/internal/config"
	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/metrics"
	"github.com/sweeney/door-lock/internal/mqtt"
	"github.com/sweeney/door-lock/internal/radar"
	"github.com/sweeney/door-lock/internal/status"
)

type cuePlayer interface {
	Play(cue logic.Cue) bool
}

type accessLog interface {
	Log(e audit.Entry) bool
}

// loopDeps are the collaborators of runLoop. Optional ones may be nil.
type loopDeps struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	button   gpio.Input
	actuator *gpio.Actuator
	radar    *radar.Feed
	commands <-chan logic.LockCommand

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus

	cues    cuePlayer
	audit   accessLog
	metrics *metrics.Metrics
	tracker *status.Tracker
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	ctrl := logic.NewController(d.cfg.Logic(), startTime)

	for {
		select {
		case s := <-sig:
			d.log.Infow("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.releaseRelay(ctrl)
			d.publishSystem(ctrl, now(), "SHUTDOWN", signalName)
			return nil

		case <-tick:
			t := now()

			pressed, err := d.button.Read()
			if err != nil {
				// Treated as released for this tick.
				d.log.Warnw("button read error", "error", err)
				pressed = false
			}

			var sample *logic.PresenceSample
			connected := false
			if d.radar != nil {
				sample, connected = d.radar.Take(t)
			}

			var remote *logic.LockCommand
			select {
			case cmd := <-d.commands:
				d.log.Infow("remote lock target", "target", cmd.String())
				remote = &cmd
			default:
			}

			restart := false
			for _, e := range ctrl.Process(logic.Input{
				Time:           t,
				Pressed:        pressed,
				Sample:         sample,
				RadarConnected: connected,
				Remote:         remote,
			}) {
				d.apply(e)
				if e.Type == logic.EventRestart {
					restart = true
				}
			}

			if forced, err := d.actuator.Check(t); forced {
				d.log.Errorw("relay watchdog forced release", "max_on", d.actuator.MaxOn(), "error", err)
				if d.metrics != nil {
					d.metrics.WatchdogRelease()
				}
				d.record(audit.Entry{At: t, Kind: "WATCHDOG_RELEASE", Detail: d.actuator.MaxOn().String()})
			}

			if restart {
				d.releaseRelay(ctrl)
				d.publishSystem(ctrl, t, "RESTART", "LONG_PRESS")
				return ErrRestartRequested
			}

			if ctrl.ButtonBaselined() {
				if hb := ctrl.CheckHeartbeat(t, d.cfg.Heartbeat); hb != nil {
					d.log.Infow("heartbeat",
						"uptime", hb.Uptime,
						"opens_button", hb.Counts.OpensButton,
						"opens_proximity", hb.Counts.OpensProximity,
						"opens_remote", hb.Counts.OpensRemote,
						"ignored", hb.Counts.Ignored,
					)
					// Refresh network info for heartbeat
					if d.tracker != nil {
						if net := readNetworkInfo(); net != nil {
							d.tracker.SetNetwork(net)
						}
					}
					d.publishSystem(ctrl, hb.Timestamp, "HEARTBEAT", "")
				}
			}

			d.updateStatus(ctrl, connected)
		}
	}
}

// apply carries out the side effects of one controller event.
func (d loopDeps) apply(e logic.Event) {
	d.log.Infow("event",
		"type", string(e.Type),
		"source", string(e.Source),
		"current", e.Current.String(),
		"target", e.Target.String(),
	)

	switch e.Type {
	case logic.EventUnlocking:
		if err := d.actuator.Energize(e.Timestamp); err != nil {
			d.log.Errorw("relay energize failed", "error", err)
		}
		d.publishLock(e)
	case logic.EventLocked:
		if err := d.actuator.Release(); err != nil {
			d.log.Errorw("relay release failed", "error", err)
		}
		d.publishLock(e)
	case logic.EventLockMirrored:
		d.publishLock(e)
	case logic.EventMotionOn, logic.EventMotionOff:
		if err := d.publisher.PublishMotion(e.Motion); err != nil {
			d.log.Warnw("motion publish error", "error", err)
		}
	}

	if err := d.publisher.Publish(e); err != nil {
		// Don't stop the loop on publish failure
		d.log.Warnw("event publish error", "error", err)
	}

	if e.Cue != logic.CueNone && d.cues != nil {
		d.cues.Play(e.Cue)
	}
	if d.metrics != nil {
		d.metrics.Observe(e)
	}

	switch e.Type {
	case logic.EventUnlocking, logic.EventLocked, logic.EventLockMirrored,
		logic.EventRequestIgnored:
		d.record(audit.FromEvent(e))
	}
}

func (d loopDeps) publishLock(e logic.Event) {
	if err := d.publisher.PublishLock(e.Current, e.Target); err != nil {
		d.log.Warnw("lock publish error", "error", err)
	}
}

func (d loopDeps) record(e audit.Entry) {
	if d.audit == nil {
		return
	}
	if !d.audit.Log(e) {
		d.log.Warnw("access log entry dropped", "kind", e.Kind)
		if d.metrics != nil {
			d.metrics.AuditDropped()
		}
	}
}

// releaseRelay drives the relay low before the process stops. If a cycle
// was in flight the mirror is corrected to locked.
func (d loopDeps) releaseRelay(ctrl *logic.Controller) {
	if err := d.actuator.Release(); err != nil {
		d.log.Errorw("relay release failed", "error", err)
	}
	if ctrl.Lock().Active() {
		if err := d.publisher.PublishLock(logic.LockLocked, logic.CommandClose); err != nil {
			d.log.Warnw("lock publish error", "error", err)
		}
	}
}

func (d loopDeps) updateStatus(ctrl *logic.Controller, radarConnected bool) {
	mqttUp := d.mqttStatus != nil && d.mqttStatus.IsConnected()
	if d.metrics != nil {
		d.metrics.SetConnectivity(radarConnected, mqttUp)
	}
	if d.tracker == nil {
		return
	}
	d.tracker.Update(status.LockFrom(ctrl.Lock()), ctrl.Presence(), radarConnected,
		ctrl.ButtonBaselined(), ctrl.EventCountsSnapshot())
	d.tracker.SetRelay(d.actuator.Energized())
	d.tracker.SetMQTTConnected(mqttUp)
}

func (d loopDeps) publishSystem(ctrl *logic.Controller, t time.Time, event, reason string) {
	se := mqtt.SystemEvent{
		Timestamp: t,
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if d.tracker != nil {
		radarConnected := d.radar != nil && d.radar.Connected(t)
		d.updateStatus(ctrl, radarConnected)
		se.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		d.log.Warnw("system event publish error", "event", event, "error", err)
	} else {
		d.log.Infow("published system event", "event", event)
	}
	if event != "HEARTBEAT" {
		d.record(audit.Entry{At: t, Kind: event, Detail: reason})
	}
}
