// Package web provides an HTTP status server for the dust-collector daemon.
package web

import (
	"context"
	"net/http"

	"github.com/sweeney/dust-collector/internal/status"
)

// Server renders tracker state as a human-readable page and a JSON document.
// It is itself an http.Handler; ListenAndServe wraps it in an http.Server.
type Server struct {
	tracker *status.Tracker
	srv     *http.Server
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}
	s.srv = &http.Server{Addr: addr, Handler: s}
	return s
}

// ServeHTTP dispatches by path: the page at / and /index.html, its JSON form
// at /index.json, 404 for anything else. Every response is a fresh snapshot.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderHTML(w, s.tracker.Snapshot())
	case "/index.json":
		w.Header().Set("Content-Type", "application/json")
		w.Write(status.FormatJSON(s.tracker.Snapshot()))
	default:
		http.NotFound(w, r)
	}
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
