package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/fishing-bot/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Fishing Bot</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.running { color: green; font-weight: bold; }
.stopped { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.forced { color: orange; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Fishing Bot<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Session</h2>
<table>
<tr><th>Running</th><td id="running" class="{{if .Running}}running{{else}}stopped{{end}}">{{if .Running}}yes{{else}}no{{end}}</td></tr>
<tr><th>State</th><td id="state">{{orDash (printf "%s" .State)}}</td></tr>
<tr><th>Session</th><td id="session">{{.Session}}</td></tr>
<tr><th>Started</th><td id="started">{{clock .StartedAt}}</td></tr>
<tr><th>History</th><td id="history">{{orDash .History}}</td></tr>
<tr><th>Candidates</th><td id="candidates">{{.Candidates}}</td></tr>
<tr><th>Predicted</th><td id="predicted">{{orDash .Predicted}}</td></tr>
</table>
{{if .Running}}<p><button id="stop">Stop</button></p>{{end}}

<h2>Recent Catches</h2>
<table id="recent">
{{range .Recent}}<tr><th>#{{.Session}} {{clock .At}}</th><td{{if .Forced}} class="forced"{{end}}>{{orDash .Result}} ({{.History}})</td></tr>
{{else}}<tr><td>none yet</td></tr>
{{end}}</table>

<h2>Catch Log</h2>
<table id="tally">
{{range .Logged.Tally}}<tr><th>{{.Result}}</th><td>{{.Count}}</td></tr>
{{else}}<tr><td>empty</td></tr>
{{end}}</table>
{{with .Logged.Outcomes}}<p>caught {{index . "caught"}}, forced {{index . "forced"}}, timed out {{index . "timeout"}}</p>{{end}}

<h2>Counts</h2>
<table>
<tr><th>Sessions</th><td>{{.Counts.Sessions}}</td></tr>
<tr><th>Bites</th><td>{{.Counts.Bites}}</td></tr>
<tr><th>Key presses</th><td>{{.Counts.KeyPresses}}</td></tr>
<tr><th>Completions</th><td>{{.Counts.Completions}}</td></tr>
<tr><th>Forced finishes</th><td>{{.Counts.ForcedFinishes}}</td></tr>
<tr><th>Timeouts</th><td>{{.Counts.Timeouts}}</td></tr>
<tr><th>Result failures</th><td>{{.Counts.ResultFailures}}</td></tr>
<tr><th>Actuation failures</th><td>{{.Counts.ActuationFailures}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orDash .Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Config</th><td>{{orDash .Config.ConfigPath}}</td></tr>
<tr><th>Known fish</th><td>{{.Config.KnownFish}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function text(id, v) { var el = document.getElementById(id); if (el) el.textContent = v === "" || v == null ? "-" : v; }
  function setDot(cls, title) { dot.className = "live-dot " + cls; dot.title = title; }

  var stop = document.getElementById("stop");
  if (stop) {
    stop.onclick = function() { fetch("/stop", { method: "POST" }); stop.disabled = true; };
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(m) {
      try {
        var s = JSON.parse(m.data).status;
        text("state", s.state);
        text("session", s.session.number);
        text("history", s.session.history);
        text("candidates", s.session.candidates);
        text("predicted", s.session.predicted);
        var r = document.getElementById("running");
        r.textContent = s.running ? "yes" : "no";
        r.className = s.running ? "running" : "stopped";
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

// formatUptime renders d to the second, with whole days split out.
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	day := 24 * time.Hour
	if d < day {
		return d.String()
	}
	days := d / day
	return fmt.Sprintf("%dd%s", days, (d - days*day).String())
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
