// Package web provides an HTTP status server for the timed-io daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/timed-io/internal/registry"
	"github.com/sweeney/timed-io/internal/status"
)

// commandTimeout bounds how long a request waits for the run loop.
const commandTimeout = 2 * time.Second

// Command asks the run loop to switch an output. The loop sends exactly one
// result on Reply.
type Command struct {
	Output   string
	On       bool
	Duration time.Duration // 0 = until switched OFF
	Reply    chan error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- Command
}

// New creates a Server that reads state from the given tracker. Output
// commands are delivered on commands; a nil channel makes outputs read-only.
func New(addr string, tracker *status.Tracker, commands chan<- Command) *Server {
	s := &Server{tracker: tracker, commands: commands}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(newCollector(tracker))

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/outputs/{name}", s.handleOutput).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
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
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// outputRequest is the body of POST /outputs/{name}. Form values
// state=on|off and duration=2s are accepted as well.
type outputRequest struct {
	State    string `json:"state"`
	Duration string `json:"duration"`
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, "outputs are read-only")
		return
	}

	var req outputRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	} else {
		req.State = r.FormValue("state")
		req.Duration = r.FormValue("duration")
	}

	cmd := Command{Output: mux.Vars(r)["name"], Reply: make(chan error, 1)}
	switch strings.ToUpper(req.State) {
	case "ON":
		cmd.On = true
	case "OFF":
	default:
		writeError(w, http.StatusBadRequest, "state must be ON or OFF")
		return
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		cmd.Duration = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		writeError(w, http.StatusServiceUnavailable, "run loop busy")
		return
	}

	select {
	case err := <-cmd.Reply:
		switch {
		case errors.Is(err, registry.ErrUnknownSensor):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "no reply from run loop")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
