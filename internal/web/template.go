package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/smartswitch/internal/status"
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
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
	"targets": func(t []string) string {
		if len(t) == 0 {
			return "unbound"
		}
		return strings.Join(t, ", ")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Smart Switch{{if .Config.Device}} {{.Config.Device}}{{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Smart Switch{{if .Config.Device}} {{.Config.Device}}{{end}}</h1>

{{range .Channels}}
<h2>{{.Channel}}</h2>
<table>
<tr><th>Relay</th><td id="{{.Channel}}-relay" class="{{if .Relay}}on{{else}}off{{end}}">{{if .Relay}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Button</th><td>{{if .Pressed}}pressed{{else}}released{{end}} ({{.State}})</td></tr>
<tr><th>Mode</th><td>{{.Config.OperatingMode}} / {{.Config.SwitchMode}} / {{.Config.SwitchActions}}</td></tr>
<tr><th>Relay mode</th><td>{{.Config.RelayMode}}</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMode}} after {{ms .Config.MinLongPress}}ms</td></tr>
<tr><th>Max pause</th><td>{{ms .Config.MaxPause}}ms</td></tr>
<tr><th>Interlock</th><td>{{.Config.InterlockMode}}</td></tr>
<tr><th>Bound to</th><td>{{targets (index $.Bindings .Channel)}}</td></tr>
<tr><th>Actions</th><td>single {{.Counts.Single}}, double {{.Counts.Double}}, triple {{.Counts.Triple}}, hold {{.Counts.Long}}</td></tr>
<tr><th>Discarded edges</th><td>{{.Spurious}} spurious, {{.Anomalies}} out of order</td></tr>
</table>
{{else}}
<p>Waiting for controller.</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Both-pressed events</th><td>{{if .BothPressed}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Rejected writes</th><td>{{.RejectedWrites}}</td></tr>
<tr><th>Dropped edges</th><td>{{.DroppedEdges}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>State file</th><td>{{.Config.StatePath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
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
