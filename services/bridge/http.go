package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"moodtunes-api-go/logcolors"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxPayloadBytes = 64 << 10

type moodRequest struct {
	Mood string `json:"mood"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

// Routes mounts the agent endpoints on router.
func (r *Registry) Routes(router *mux.Router) {
	router.HandleFunc("/agent/music", r.handleMusic).Methods(http.MethodPost)
	router.HandleFunc("/agent/mood", r.handleMood).Methods(http.MethodPost)
}

// Handler returns a router serving only the agent endpoints.
func (r *Registry) Handler() http.Handler {
	router := mux.NewRouter()
	r.Routes(router)
	return router
}

func (r *Registry) handleMusic(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large.")
		return
	}
	music, err := ParseMusic(body)
	if err != nil {
		log.Warnf("%s Rejected music payload from %s: %v", logcolors.LogBridge, req.RemoteAddr, err)
		writeError(w, http.StatusBadRequest, "Expected a string or an array of {title, artist}.")
		return
	}

	// Lookups outlive the request.
	go r.PublishMusic(context.WithoutCancel(req.Context()), music)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (r *Registry) handleMood(w http.ResponseWriter, req *http.Request) {
	var body moodRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxPayloadBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Expected {\"mood\": \"...\"}.")
		return
	}
	m := r.Mood(body.Mood)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "mood": string(m)})
}

// Server serves the agent endpoints on a local address.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// Listen binds addr. Use "127.0.0.1:0" for an ephemeral port.
func Listen(addr string, reg *Registry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding agent bridge on %s: %w", addr, err)
	}
	return &Server{
		listener: ln,
		server: &http.Server{
			Handler:      reg.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until ctx is done, then shuts the listener down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("%s Agent bridge listening on http://%s", logcolors.LogBridge, s.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("agent bridge: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("agent bridge shutdown: %w", err)
	}
	log.Infof("%s Agent bridge stopped", logcolors.LogBridge)
	return nil
}
