package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/report"
	"github.com/sweeney/carpi-telemetry/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		if days := d / (24 * time.Hour); days > 0 {
			return fmt.Sprintf("%dd %s", int64(days), d-days*24*time.Hour)
		}
		return d.String()
	},
	"ago": func(m report.Millis, now time.Time) string {
		return status.Relative(m, now, "never")
	},
	"when": func(m report.Millis) string {
		return status.Absolute(m, "never")
	},
	"mph":  status.SpeedMPH,
	"temp": status.Temperature,
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"coord": func(c report.Coord) string {
		if !c.Valid {
			return status.NotAvailable
		}
		return fmt.Sprintf("%.6f", c.Value)
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Car Status</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 1.5em auto; padding: 0 1em; }
h1 { font-size: 1.5em; }
h2 { font-size: 1.1em; margin-top: 1.5em; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 5px 8px; border-bottom: 1px solid #e4e4e4; }
th { width: 35%; font-weight: normal; color: #555; }
.open { color: #c00; font-weight: bold; }
.closed { color: #080; }
.unknown { color: #b60; }
</style>
</head>
<body>
<h1>Car Status</h1>

<h2>Device</h2>
<table>
<tr><th>Status</th><td>{{if .Snap.Status}}{{.Snap.Status}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Last Update</th><td>{{ago .Snap.Timestamp .Snap.Now}} ({{when .Snap.Timestamp}})</td></tr>
<tr><th>CPU Temperature</th><td>{{temp .Snap.CPUTempC}}</td></tr>
<tr><th>Speed</th><td>{{mph .Snap.Position}} mph</td></tr>
{{if .ShowPos}}{{with .Snap.Position}}<tr><th>Position</th><td>{{coord .Lat}}, {{coord .Lng}}</td></tr>{{end}}{{end}}
</table>

<h2>Doors</h2>
<table>
<tr><th>Door Open</th><td class="{{if .Snap.DoorOpen}}open{{else}}closed{{end}}">{{if .Snap.DoorOpen}}YES{{else}}no{{end}}</td></tr>
<tr><th>Last Opened</th><td>{{ago .Snap.LastOpenedAt .Snap.Now}} ({{when .Snap.LastOpenedAt}})</td></tr>
{{range $i, $d := .Snap.Sensors}}<tr><th>Sensor {{inc $i}}</th><td class="{{if not $d.Known}}unknown{{else if $d.IsOpen}}open{{else}}closed{{end}}">{{$d}}</td></tr>
{{end}}</table>

<h2>Collector</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Snap.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Reports</th><td>{{comma .Snap.Applied}} applied, {{comma .Snap.Duplicates}} duplicates</td></tr>
<tr><th>History</th><td>{{comma .Snap.HistoryLen}} positions</td></tr>
<tr><th>Notifications</th><td>{{if .Config.NotifySensors}}on{{else}}off{{end}}{{if .Config.MQTTBroker}}, mqtt {{.Config.MQTTBroker}} ({{.Config.MQTTState}}){{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/history.json">History</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap collector.Snapshot, cfg status.Config, showPos bool) {
	data := struct {
		Snap    collector.Snapshot
		Config  status.Config
		Uptime  time.Duration
		ShowPos bool
	}{
		Snap:    snap,
		Config:  cfg,
		Uptime:  snap.Uptime(),
		ShowPos: showPos,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
