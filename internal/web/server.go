// Package web provides the local HTTP status page for the semaphor daemon.
package web

import (
	"context"
	"image"
	"image/png"
	"net"
	"net/http"

	"github.com/sweeney/semaphor/internal/logger"
	"github.com/sweeney/semaphor/internal/status"
)

// Screen supplies the pixels currently on the display.
type Screen interface {
	Image() *image.Gray
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	screen     Screen
	log        *logger.Logger
}

// New creates a Server that reads state from the given tracker. screen
// may be nil, in which case /display.png is not served.
func New(addr string, tracker *status.Tracker, screen Screen, log *logger.Logger) *Server {
	s := &Server{tracker: tracker, screen: screen, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/display.png", s.handleDisplay)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.screen != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if s.screen == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, scale(s.screen.Image(), displayScale)); err != nil {
		s.log.Debugw("display png write failed", "err", err)
	}
}

// displayScale enlarges the 128x32 panel so it is readable in a browser.
const displayScale = 4

func scale(src *image.Gray, k int) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*k, b.Dy()*k))
	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[(y/k)*src.Stride+x/k]
		}
	}
	return dst
}
