package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/timed-io/internal/status"
)

// duration renders d as "1d 2h 3m 4s", dropping leading zero units.
func duration(d time.Duration) string {
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
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": duration,
	"millis": func(ms uint32) string {
		return duration(time.Duration(ms) * time.Millisecond)
	},
	"ago": func(t, now time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.RelTime(t, now, "ago", "from now")
	},
	"comma": func(n uint64) string {
		return humanize.Comma(int64(n))
	},
	"monthName": func(i int) string {
		return time.Month(i + 1).String()[:3]
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>timed-io</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>timed-io</h1>

<h2>Inputs</h2>
{{if .Inputs}}<table>
<tr><th>Name</th><th>Pin</th><th>State</th><th>Session</th><th>Today</th><th>Count</th><th>Month</th><th>Previous</th><th>Last persisted</th></tr>
{{range .Inputs}}<tr>
<td>{{.Name}}</td><td>{{.Pin}}</td>
<td class="{{if eq .State "ON"}}on{{else}}off{{end}}">{{.State}}</td>
<td>{{duration .CurrentOn}}</td>
<td>{{duration .TodayOn}}</td>
<td>{{.TodayOnCount}}</td>
<td>{{duration .MonthOn}}</td>
<td>{{duration .PreviousOn}}{{if not .PreviousOnStop.IsZero}} ({{ago .PreviousOnStop $.Now}}){{end}}</td>
<td>{{ago .LastPersistAttempt $.Now}}</td>
</tr>{{end}}
</table>{{else}}<p>No inputs configured.</p>{{end}}

<h2>Outputs</h2>
{{if .Outputs}}<table>
<tr><th>Name</th><th>Pin</th><th>State</th><th>Elapsed</th><th>Remaining</th></tr>
{{range .Outputs}}<tr>
<td>{{.Name}}</td><td>{{.Pin}}</td>
<td class="{{if eq .State "ON"}}on{{else}}off{{end}}">{{.State}}</td>
<td>{{if eq .State "ON"}}{{duration .Elapsed}}{{else}}-{{end}}</td>
<td>{{if eq .State "ON"}}{{if eq .Interval 0}}until switched off{{else}}{{duration .Remaining}}{{end}}{{else}}-{{end}}</td>
</tr>{{end}}
</table>{{else}}<p>No outputs configured.</p>{{end}}

{{if .Monthly}}<h2>Monthly ON time</h2>
<table>
<tr><th>Sensor</th>{{range $i, $_ := (index .Monthly 0).Months}}<th>{{monthName $i}}</th>{{end}}</tr>
{{range .Monthly}}<tr><td>{{if .Sensor}}{{.Sensor}}{{else}}slot {{.Slot}}{{end}}</td>{{range .Months}}<td>{{millis .}}</td>{{end}}</tr>
{{end}}</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Recording interval</th><td>{{duration .RecordingInterval}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>NVRAM</th><td>{{.Config.NVRAMBackend}} {{.Config.NVRAMPath}}, {{comma .NVRAMWrites}} writes</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs Duration fields.
	data := struct {
		status.Snapshot
		Uptime            time.Duration
		RecordingInterval time.Duration
	}{
		Snapshot:          snap,
		Uptime:            snap.Uptime(),
		RecordingInterval: time.Duration(snap.Config.RecordingIntervalMs) * time.Millisecond,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
