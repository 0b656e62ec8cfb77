package wifi

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"strings"
)

// Credentials are what an operator submits through the portal.
type Credentials struct {
	SSID     string
	Password string
}

// Portal is the captive configuration page served while provisioning.
type Portal struct {
	httpServer  *http.Server
	submissions chan Credentials
	networks    func() []string
	name        string
}

// NewPortal creates a portal page titled name. networks, if non-nil,
// supplies the SSIDs offered in the form.
func NewPortal(addr, name string, networks func() []string) *Portal {
	p := &Portal{
		submissions: make(chan Credentials, 1),
		networks:    networks,
		name:        name,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleForm)
	mux.HandleFunc("/save", p.handleSave)

	p.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return p
}

// Submissions delivers credentials posted by the operator. A post made
// while an earlier one is still unread is rejected with 503.
func (p *Portal) Submissions() <-chan Credentials {
	return p.submissions
}

// ListenAndServe starts listening. It blocks until the portal is shut down.
func (p *Portal) ListenAndServe() error {
	return p.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (p *Portal) Serve(ln net.Listener) error {
	return p.httpServer.Serve(ln)
}

// Shutdown stops the portal.
func (p *Portal) Shutdown(ctx context.Context) error {
	return p.httpServer.Shutdown(ctx)
}

// Handler returns the portal's HTTP handler.
func (p *Portal) Handler() http.Handler {
	return p.httpServer.Handler
}

type formData struct {
	Name     string
	Networks []string
	Message  string
}

func (p *Portal) handleForm(w http.ResponseWriter, r *http.Request) {
	// Captive clients request arbitrary paths; answer them all with the form.
	data := formData{Name: p.name}
	if p.networks != nil {
		data.Networks = p.networks()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	portalTmpl.Execute(w, data)
}

func (p *Portal) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	creds := Credentials{
		SSID:     strings.TrimSpace(r.PostForm.Get("ssid")),
		Password: r.PostForm.Get("password"),
	}
	if creds.SSID == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		portalTmpl.Execute(w, formData{Name: p.name, Message: "Network name is required."})
		return
	}

	select {
	case p.submissions <- creds:
	default:
		http.Error(w, "already connecting, try again shortly", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	portalTmpl.Execute(w, formData{Name: p.name, Message: "Saved. Connecting to " + creds.SSID + "..."})
}

var portalTmpl = template.Must(template.New("portal").Parse(portalHTML))

const portalHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<style>
body { font-family: monospace; max-width: 420px; margin: 2em auto; padding: 0 1em; }
input, select, button { width: 100%; margin: 0.3em 0; padding: 0.4em; box-sizing: border-box; }
.msg { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
{{if .Message}}<p class="msg">{{.Message}}</p>{{end}}
<form method="post" action="/save">
<label>Network</label>
{{if .Networks}}<select name="ssid">{{range .Networks}}<option>{{.}}</option>{{end}}</select>
{{else}}<input name="ssid" autocomplete="off">{{end}}
<label>Password</label>
<input name="password" type="password">
<button type="submit">Save</button>
</form>
</body>
</html>
`
