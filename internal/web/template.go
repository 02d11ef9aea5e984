package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dust-collector/internal/status"
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
	"gateClass": func(s string) string {
		switch s {
		case "open":
			return "on"
		case "fault":
			return "fault"
		case "closed":
			return "off"
		}
		return "moving"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Dust Collector</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.moving { color: orange; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Dust Collector</h1>

<h2>Collector</h2>
<table>
<tr><th>Collector</th><td class="{{if .CollectorOn}}on{{else}}off{{end}}">{{if .CollectorOn}}RUNNING{{else}}STOPPED{{end}}</td></tr>
<tr><th>Active machines</th><td>{{.ActiveCount}}</td></tr>
</table>

<h2>Machines</h2>
<table>
<tr><th>Machine</th><td>State</td><td>Reading</td></tr>
{{range .Machines}}<tr><th>{{.Name}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{.State}}</td><td>{{printf "%.3f" .Raw}}</td></tr>
{{end}}</table>

<h2>Gates</h2>
<table>
<tr><th>Gate</th><td>State</td></tr>
{{range .Gates}}<tr><th>{{.Machine}}</th><td class="{{gateClass (printf "%s" .State)}}">{{.State}}{{if .Fault}} — {{.Fault}}{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Machine ON</th><td>{{.Counts.On}}</td></tr>
<tr><th>Machine OFF</th><td>{{.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

{{if .Topology}}<h2>Event Routing</h2>
<table>
{{range .Topology}}<tr><td>{{.}}</td></tr>
{{end}}</table>{{end}}

<p><a href="/index.json">JSON</a></p>
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
