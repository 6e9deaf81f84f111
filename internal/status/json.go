package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/door-lock/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Lock          LockJSON     `json:"lock"`
	Presence      PresenceJSON `json:"presence"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LockJSON is the JSON representation of the lock state.
type LockJSON struct {
	Phase    string `json:"phase"`
	Current  string `json:"current"`
	Target   string `json:"target"`
	Relay    bool   `json:"relay"`
	Source   string `json:"source,omitempty"`
	OpenedAt string `json:"opened_at,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// PresenceJSON is the JSON representation of radar presence.
type PresenceJSON struct {
	RadarConnected bool   `json:"radar_connected"`
	Motion         bool   `json:"motion"`
	Proximity      bool   `json:"proximity"`
	LastMotionAt   string `json:"last_motion_at,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	OpensButton    int `json:"opens_button"`
	OpensProximity int `json:"opens_proximity"`
	OpensRemote    int `json:"opens_remote"`
	Ignored        int `json:"ignored"`
	MotionOn       int `json:"motion_on"`
	MotionOff      int `json:"motion_off"`
	Single         int `json:"single"`
	Double         int `json:"double"`
	Long           int `json:"long"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	DebounceMs   int64  `json:"debounce_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	OpenMs       int64  `json:"open_ms"`
	CooldownMs   int64  `json:"cooldown_ms"`
	HoldOverMs   int64  `json:"hold_over_ms"`
	ProximityCm  uint32 `json:"proximity_cm"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	AuditEnabled bool   `json:"audit_enabled"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildLock(snap Snapshot) LockJSON {
	phase := string(snap.Lock.Phase)
	if phase == "" {
		phase = string(logic.PhaseLocked)
	}
	l := LockJSON{
		Phase:   phase,
		Current: snap.Lock.Current.String(),
		Target:  snap.Lock.Target.String(),
		Relay:   snap.RelayOn,
	}
	if s := snap.Lock.Session; s != nil {
		l.Source = string(s.Source)
		l.OpenedAt = formatTime(s.OpenedAt)
		l.Deadline = formatTime(snap.Lock.Deadline)
	}
	return l
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Counts
	return StatusInner{
		Lock: buildLock(snap),
		Presence: PresenceJSON{
			RadarConnected: snap.RadarConnected,
			Motion:         snap.Presence.MotionPresent,
			Proximity:      snap.Presence.ProximityTrigger,
			LastMotionAt:   formatTime(snap.Presence.LastMotionAt),
		},
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			OpensButton:    c.OpensButton,
			OpensProximity: c.OpensProximity,
			OpensRemote:    c.OpensRemote,
			Ignored:        c.Ignored,
			MotionOn:       c.MotionOn,
			MotionOff:      c.MotionOff,
			Single:         c.Single,
			Double:         c.Double,
			Long:           c.Long,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			DebounceMs:   snap.Config.DebounceMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			OpenMs:       snap.Config.OpenMs,
			CooldownMs:   snap.Config.CooldownMs,
			HoldOverMs:   snap.Config.HoldOverMs,
			ProximityCm:  snap.Config.ProximityCm,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			AuditEnabled: snap.Config.AuditEnabled,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
