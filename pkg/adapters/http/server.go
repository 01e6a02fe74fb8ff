package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/instance"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions is the part of session.Manager the HTTP surface drives.
type Sessions interface {
	Definitions() []string
	StartProcess(ctx context.Context, definitionID string, vars map[string]any) (*instance.ProcessInstance, error)
	Instances() []int64
	Snapshot(ctx context.Context, id int64) (*domain.ProcessSnapshot, error)
	Signal(ctx context.Context, id int64, signalType string, payload any) error
	SignalAll(ctx context.Context, signalType string, payload any) error
	TriggerNode(ctx context.Context, id int64, uniqueID string) (int64, error)
	CompleteNodeInstance(ctx context.Context, id, nodeInstanceID int64) error
	CompleteWorkItem(ctx context.Context, id, workItemID int64, results map[string]any) error
	Abort(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	FireTimer(ctx context.Context, timerID int64) bool
}

// Server exposes a session over REST.
type Server struct {
	sessions Sessions
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for a session.
func NewHandler(sessions Sessions, opts ...Option) http.Handler {
	s := &Server{
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/definitions", s.ListDefinitions)
	r.Post("/signals", s.Broadcast)
	r.Post("/timers/{timerID}/fire", s.FireTimer)

	r.Route("/processes", func(r chi.Router) {
		r.Get("/", s.ListProcesses)
		r.Post("/", s.StartProcess)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetProcess)
			r.Delete("/", s.DeleteProcess)
			r.Post("/abort", s.AbortProcess)
			r.Post("/signals", s.SignalProcess)
			r.Post("/nodes", s.TriggerNode)
			r.Post("/nodes/{nodeInstanceID}/complete", s.CompleteNode)
			r.Post("/work-items/{workItemID}/complete", s.CompleteWorkItem)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest is the body of POST /processes.
type StartRequest struct {
	Definition string         `json:"definition"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// SignalRequest is the body of the signal endpoints.
type SignalRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// TriggerRequest is the body of POST /processes/{id}/nodes.
type TriggerRequest struct {
	Node string `json:"node"`
}

// TriggerResponse reports the created node instance.
type TriggerResponse struct {
	NodeInstanceID int64 `json:"node_instance_id"`
}

// CompleteWorkItemRequest is the body of the work item completion endpoint.
type CompleteWorkItemRequest struct {
	Results map[string]any `json:"results,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListDefinitions handles GET /definitions.
func (s *Server) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Definitions())
}

// ListProcesses handles GET /processes.
func (s *Server) ListProcesses(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Instances())
}

// StartProcess handles POST /processes.
func (s *Server) StartProcess(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if !s.decode(w, r, &body) {
		return
	}
	pi, err := s.sessions.StartProcess(r.Context(), body.Definition, body.Variables)
	if err != nil && pi == nil {
		s.writeError(w, r, err)
		return
	}
	// A start that aborted the instance still created it; report its state.
	snap, snapErr := s.sessions.Snapshot(r.Context(), pi.ID())
	if snapErr != nil {
		s.writeError(w, r, snapErr)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/processes/"+strconv.FormatInt(pi.ID(), 10))
	s.writeJSON(w, http.StatusCreated, snap)
}

// GetProcess handles GET /processes/{id}.
func (s *Server) GetProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := s.sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteProcess handles DELETE /processes/{id}.
func (s *Server) DeleteProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AbortProcess handles POST /processes/{id}/abort.
func (s *Server) AbortProcess(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, id int64) error {
		return s.sessions.Abort(ctx, id)
	})
}

// SignalProcess handles POST /processes/{id}/signals.
func (s *Server) SignalProcess(w http.ResponseWriter, r *http.Request) {
	var body SignalRequest
	if !s.decode(w, r, &body) || !s.requireSignal(w, r, body) {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id int64) error {
		return s.sessions.Signal(ctx, id, body.Type, body.Payload)
	})
}

// Broadcast handles POST /signals.
func (s *Server) Broadcast(w http.ResponseWriter, r *http.Request) {
	var body SignalRequest
	if !s.decode(w, r, &body) || !s.requireSignal(w, r, body) {
		return
	}
	if err := s.sessions.SignalAll(r.Context(), body.Type, body.Payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// TriggerNode handles POST /processes/{id}/nodes.
func (s *Server) TriggerNode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var body TriggerRequest
	if !s.decode(w, r, &body) {
		return
	}
	nodeInstanceID, err := s.sessions.TriggerNode(r.Context(), id, body.Node)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, TriggerResponse{NodeInstanceID: nodeInstanceID})
}

// CompleteNode handles POST /processes/{id}/nodes/{nodeInstanceID}/complete.
func (s *Server) CompleteNode(w http.ResponseWriter, r *http.Request) {
	nodeInstanceID, ok := s.pathID(w, r, "nodeInstanceID")
	if !ok {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id int64) error {
		return s.sessions.CompleteNodeInstance(ctx, id, nodeInstanceID)
	})
}

// CompleteWorkItem handles POST /processes/{id}/work-items/{workItemID}/complete.
func (s *Server) CompleteWorkItem(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := s.pathID(w, r, "workItemID")
	if !ok {
		return
	}
	var body CompleteWorkItemRequest
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id int64) error {
		return s.sessions.CompleteWorkItem(ctx, id, workItemID, body.Results)
	})
}

// FireTimer handles POST /timers/{timerID}/fire.
func (s *Server) FireTimer(w http.ResponseWriter, r *http.Request) {
	timerID, ok := s.pathID(w, r, "timerID")
	if !ok {
		return
	}
	if !s.sessions.FireTimer(r.Context(), timerID) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "timer not pending"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// mutate runs op against the process in the path and answers with its snapshot.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) error) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := op(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) requireSignal(w http.ResponseWriter, r *http.Request, body SignalRequest) bool {
	if body.Type == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "signal type is required"})
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": " + raw})
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps engine errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, domain.ErrProcessNotFound),
		errors.Is(err, domain.ErrDefinitionNotFound),
		errors.Is(err, domain.ErrNodeInstanceNotFound),
		errors.Is(err, domain.ErrWorkItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrProcessNotActive):
		status = http.StatusConflict
	case errors.As(err, &cfgErr):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
