package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vinayprograms/refinery/logging"
)

// maxDescriptorBytes bounds a registration body.
const maxDescriptorBytes = 1 << 20

// RegisterResponse is the body returned by POST /register.
type RegisterResponse struct {
	Status string   `json:"status"`
	Tags   []string `json:"tags"`
}

// ErrorResponse is the body returned for any non-2xx status.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Server exposes a Registry over HTTP.
//
//	POST /register        Descriptor -> RegisterResponse
//	GET  /resolve?tag=x   Descriptor, or 404
//	GET  /list            []Descriptor
//	GET  /                health
type Server struct {
	reg    Registry
	logger *logging.Logger
	server *http.Server
}

// NewServer creates a registry server listening on addr.
func NewServer(addr string, reg Registry, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New()
	}
	s := &Server{
		reg:    reg,
		logger: logger.WithComponent("registry"),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	events, err := reg.Watch()
	if err != nil {
		s.logger.Warn("watch_unavailable", map[string]interface{}{"error": err.Error()})
		return s
	}
	go s.logEvents(events)
	return s
}

// logEvents records tag changes until the registry closes the channel.
// Expiry has no request to log it otherwise.
func (s *Server) logEvents(events <-chan Event) {
	for ev := range events {
		fields := map[string]interface{}{"tag": ev.Tag, "id": ev.Descriptor.ID}
		switch ev.Type {
		case EventAdded:
			s.logger.Debug("tag_added", fields)
		case EventUpdated:
			s.logger.Debug("tag_replaced", fields)
		case EventRemoved:
			s.logger.Info("tag_expired", fields)
		}
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /resolve", s.handleResolve)
	mux.HandleFunc("GET /list", s.handleList)
	mux.HandleFunc("GET /{$}", s.handleHealth)
	return mux
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// OnShutdown implements shutdown.Handler.
func (s *Server) OnShutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("registry http shutdown: %w", err)
	}
	return s.reg.Close()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var d Descriptor
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDescriptorBytes))
	if err := dec.Decode(&d); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid descriptor: " + err.Error()})
		return
	}

	tags, err := s.reg.Register(d)
	switch {
	case errors.Is(err, ErrInvalidDescriptor):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "descriptor needs an id and non-blank tags"})
		return
	case errors.Is(err, ErrClosed):
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: err.Error()})
		return
	case err != nil:
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
		return
	}

	s.logger.Registered(d.ID, tags)
	s.writeJSON(w, http.StatusOK, RegisterResponse{Status: "registered", Tags: tags})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "missing tag parameter"})
		return
	}

	d, err := s.reg.Resolve(tag)
	switch {
	case errors.Is(err, ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: fmt.Sprintf("Agent with tag '%s' not found", tag)})
		return
	case err != nil:
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: err.Error()})
		return
	}

	s.logger.Debug("resolved", map[string]interface{}{"tag": tag, "id": d.ID})
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.reg.List()
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "Registry is running"})
}

// writeJSON encodes v before writing the header so that a value that
// cannot be encoded becomes a 500 rather than an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode_failed", map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		})
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Detail: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Warn("write_failed", map[string]interface{}{"error": err.Error()})
	}
}
