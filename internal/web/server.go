// Package web exposes the agent's status snapshot over HTTP as JSON, for
// curl and for the plant dashboard scraper.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/sweeney/andon-agent/internal/status"
)

// Server answers status requests from tracker snapshots. Both "/" and
// "/index.json" return the same document.
type Server struct {
	httpServer *http.Server
}

// New creates a Server bound to addr that reads from tracker.
func New(addr string, tracker *status.Tracker) *Server {
	handler := statusHandler(tracker)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler)
	mux.HandleFunc("/index.json", handler)

	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the request handler, for tests that serve it directly.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func statusHandler(tracker *status.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The "/" pattern catches every unregistered path; reject those.
		switch r.URL.Path {
		case "/", "/index.json":
		default:
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(status.FormatJSON(tracker.Snapshot()))
	}
}
