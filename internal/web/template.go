package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/semaphor/internal/status"
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
	"lower": strings.ToLower,
	"orDefault": func(def, s string) string {
		if s == "" {
			return def
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Semaphor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.swatch { display: inline-block; width: 14px; height: 14px; border-radius: 50%; border: 1px solid #888; vertical-align: middle; margin-right: 6px; }
.red { background: #d00; } .yellow { background: #eb0; } .green { background: #0a0; }
.blue { background: #06d; } .white { background: #fff; } .off { background: #333; }
.connected { color: green; }
.disconnected { color: red; }
.screen { image-rendering: pixelated; background: #000; width: 100%; max-width: 512px; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Semaphor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Indicator</h2>
<table>
<tr><th>Colour</th><td><span id="swatch" class="swatch {{lower (orDefault "OFF" .Color)}}"></span><span id="color">{{orDefault "OFF" .Color}}</span></td></tr>
<tr><th>Message</th><td id="message">{{.Message}}</td></tr>
</table>
{{if .HasScreen}}<img id="screen" class="screen" src="/display.png" alt="display">{{end}}

<h2>Thresholds</h2>
<table>
<tr><th>Low (MIN)</th><td id="low">{{.Thresholds.Low}}</td></tr>
<tr><th>High (MAX)</th><td id="high">{{.Thresholds.High}}</td></tr>
<tr><th>Editing</th><td id="mode">{{.Mode}}</td></tr>
</table>

<h2>Last Poll</h2>
<table>
{{with .LastPoll}}<tr><th>Time</th><td>{{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}{{if .Forced}} (forced){{end}}</td></tr>
<tr><th>HTTP status</th><td>{{if eq .HTTPStatus 0}}no response{{else}}{{.HTTPStatus}}{{end}}</td></tr>
<tr><th>Metric</th><td>{{.Metric}}{{if .Level}} ({{.Level}}){{end}}</td></tr>
{{if .Error}}<tr><th>Error</th><td>{{.Error}}</td></tr>{{end}}
{{else}}<tr><th>Status</th><td>no poll yet</td></tr>{{end}}
<tr><th>Polls</th><td>{{.Counts.Polls}} ({{.Counts.PollFailures}} failed)</td></tr>
<tr><th>Button events</th><td>{{.Counts.ButtonEvents}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>WiFi</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{orDefault "UNKNOWN" (printf "%s" .Connectivity)}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.SSID}} on {{.Network.Interface}}</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orDefault "disabled" .Config.Broker}}</td></tr>
{{if or .MQTTQueued .MQTTDropped}}<tr><th>Outbox</th><td>{{.MQTTQueued}} queued{{range $kind, $n := .MQTTDropped}}, {{$n}} {{$kind}} dropped{{end}}</td></tr>{{end}}
<tr><th>Clock</th><td>{{if .ClockSynced}}NTP synced{{else}}local{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Endpoint</th><td>{{.Config.Endpoint}}</td></tr>
<tr><th>Poll interval</th><td>{{.Config.PollIntervalMs}}ms</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var screen = document.getElementById("screen");

  function setText(id, v) {
    var el = document.getElementById(id);
    if (el) { el.textContent = v; }
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type !== "state") { return; }
        var s = msg.data.status;
        setText("color", s.color);
        document.getElementById("swatch").className = "swatch " + s.color.toLowerCase();
        setText("message", s.message);
        setText("low", s.thresholds.low);
        setText("high", s.thresholds.high);
        setText("mode", s.thresholds.mode);
        if (screen) { screen.src = "/display.png?t=" + Date.now(); }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, hasScreen bool) {
	// Snapshot has Uptime() and Connected() methods; the template reads fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Connected bool
		HasScreen bool
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Connected: snap.Connected(),
		HasScreen: hasScreen,
	}
	indexTmpl.Execute(w, data)
}
