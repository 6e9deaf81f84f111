package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"phase": func(p logic.Phase) string {
		if p == "" {
			return string(logic.PhaseLocked)
		}
		return string(p)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Door Lock</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Door Lock</h1>

<h2>Lock</h2>
<table>
<tr><th>State</th><td id="lock-state" class="{{if eq (printf "%s" .Lock.Phase) "OPENING"}}on{{else}}off{{end}}">{{phase .Lock.Phase}}</td></tr>
<tr><th>Current / Target</th><td>{{.Lock.Current}} / {{.Lock.Target}}</td></tr>
<tr><th>Relay</th><td class="{{if .RelayOn}}on{{else}}off{{end}}">{{if .RelayOn}}energized{{else}}off{{end}}</td></tr>
{{with .Lock.Session}}<tr><th>Opened by</th><td>{{.Source}} at {{.OpenedAt.UTC.Format "15:04:05Z"}}</td></tr>{{end}}
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Presence</h2>
<table>
<tr><th>Radar</th><td class="{{if .RadarConnected}}connected{{else}}disconnected{{end}}">{{if .RadarConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Motion</th><td class="{{if .Presence.MotionPresent}}on{{else}}off{{end}}">{{if .Presence.MotionPresent}}yes{{else}}no{{end}}</td></tr>
<tr><th>Proximity</th><td>{{if .Presence.ProximityTrigger}}yes{{else}}no{{end}}</td></tr>
{{if not .Presence.LastMotionAt.IsZero}}<tr><th>Last motion</th><td>{{.Presence.LastMotionAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opens (button)</th><td>{{.Counts.OpensButton}}</td></tr>
<tr><th>Opens (proximity)</th><td>{{.Counts.OpensProximity}}</td></tr>
<tr><th>Opens (remote)</th><td>{{.Counts.OpensRemote}}</td></tr>
<tr><th>Ignored</th><td>{{.Counts.Ignored}}</td></tr>
<tr><th>Presses</th><td>{{.Counts.Single}} single, {{.Counts.Double}} double, {{.Counts.Long}} long</td></tr>
<tr><th>Motion</th><td>{{.Counts.MotionOn}} on, {{.Counts.MotionOff}} off</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Open window</th><td>{{.Config.OpenMs}}ms</td></tr>
<tr><th>Auto-open cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Proximity</th><td>&lt; {{.Config.ProximityCm}}cm</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Config.AuditEnabled}} | <a href="/events.json">Access log</a>{{end}} | <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
