// Package web serves the smartswitch status page, per-channel JSON and
// Prometheus metrics over HTTP.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/smartswitch/internal/logic"
	"github.com/sweeney/smartswitch/internal/status"
)

// Server exposes the tracker's snapshot. Handlers only read; all state
// changes arrive through the tracker.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server listening on addr. When metrics is non-nil its
// collectors are exposed on /metrics.
func New(addr string, tracker *status.Tracker, metrics prometheus.Gatherer) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleDevice)
	mux.HandleFunc("GET /channels/{n}", s.handleChannel)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, status.FormatJSON(s.tracker.Snapshot()))
}

// handleChannel serves /channels/{n}, where n is the 1-based button number.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		http.Error(w, "channel must be a number", http.StatusBadRequest)
		return
	}
	data, ok := status.FormatChannelJSON(s.tracker.Snapshot(), logic.Channel(n))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, data)
}

// handleReady answers 503 until the controller has published its first
// snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.tracker.Snapshot().Ready {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
