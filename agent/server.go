package agent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/registry"
	"github.com/vinayprograms/refinery/telemetry"
)

// maxEnvelopeBytes bounds a request body.
const maxEnvelopeBytes = 8 << 20

// AskRequest is the body accepted by POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// ErrorResponse is the body returned for any non-2xx status.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// Server exposes a Capability over HTTP.
//
//	POST /a2a                     Envelope -> Reply
//	POST /ask                     AskRequest -> Reply
//	GET  /.well-known/agent.json  Descriptor
//	GET  /                        health
type Server struct {
	capability Capability
	descriptor registry.Descriptor
	logger     *logging.Logger
	server     *http.Server
}

// NewServer creates a server for c listening on addr. d is served as the
// agent's self-description.
func NewServer(addr string, c Capability, d registry.Descriptor, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New()
	}
	s := &Server{
		capability: c,
		descriptor: d.Clone(),
		logger:     logger.WithComponent("agent." + c.Tag()),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /a2a", s.handleA2A)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /.well-known/agent.json", s.handleDescriptor)
	mux.HandleFunc("GET /{$}", s.handleHealth)
	return mux
}

// Descriptor returns the served self-description.
func (s *Server) Descriptor() registry.Descriptor {
	return s.descriptor.Clone()
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", map[string]interface{}{"addr": s.server.Addr, "tag": s.capability.Tag()})
	if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// OnShutdown implements shutdown.Handler.
func (s *Server) OnShutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("agent http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleA2A(w http.ResponseWriter, r *http.Request) {
	var env pipeline.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&env); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid envelope: " + err.Error()})
		return
	}
	if env.Context == nil {
		env.Context = map[string]any{}
	}
	if env.Trace == nil {
		env.Trace = []pipeline.StepRecord{}
	}
	s.run(w, r, env)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "question is required"})
		return
	}
	s.run(w, r, pipeline.New(req.Question).WithIntent(pipeline.IntentAsk))
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, env pipeline.Envelope) {
	ctx := telemetry.ExtractHTTP(r.Context(), r.Header)
	start := time.Now()

	reply, err := s.capability.Run(ctx, env)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrCodeInvalidInput) {
			status = http.StatusBadRequest
		}
		s.logger.Error("run_failed", map[string]interface{}{
			"intent": string(env.Intent),
			"error":  err.Error(),
		})
		s.writeJSON(w, status, ErrorResponse{Detail: err.Error(), Code: string(errors.Code(err))})
		return
	}
	if reply.Trace == nil {
		reply.Trace = []pipeline.StepRecord{}
	}

	s.logger.Info("handled", map[string]interface{}{
		"intent":   string(env.Intent),
		"status":   string(reply.Status),
		"steps":    len(reply.Trace),
		"duration": time.Since(start).String(),
	})
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.descriptor)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": fmt.Sprintf("%s agent is running", s.capability.Tag()),
	})
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
