package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/outline/internal/logging"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Engine is the part of outline.Engine the REST API needs.
type Engine interface {
	Open(ctx context.Context, projectID string) (*session.Session, error)
	View(ctx context.Context, projectID string) (session.View, error)
	Projects(ctx context.Context) ([]string, error)
	History(ctx context.Context, projectID string) ([]domain.VersionRecord, error)
	Delete(ctx context.Context, projectID string) error
	Subscribe(projectID string, fn session.Observer) (cancel func())
}

// Server holds the handlers of the REST API.
type Server struct {
	Engine  Engine
	Version string

	logger      *slog.Logger
	metrics     http.Handler
	corsOrigins []string
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts h (usually promhttp) at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCORSOrigins sets the allowed origins. Default: any.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:      engine,
		Version:     "dev",
		logger:      logging.NewNop(),
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Outline-Version"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.ListProjects)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.GetProject)
			r.Delete("/", s.DeleteProject)
			r.Get("/outline", s.GetOutline)
			r.Get("/tree", s.GetTree)
			r.Get("/document", s.GetDocument)
			r.Get("/graph", s.GetGraph)
			r.Post("/nodes", s.AddNode)
			r.Patch("/nodes/{nodeID}", s.UpdateNode)
			r.Delete("/nodes/{nodeID}", s.DeleteNode)
			r.Post("/reorder", s.Reorder)
			r.Put("/name", s.Rename)
			r.Get("/changes", s.GetChanges)
			r.Post("/checkpoints", s.Checkpoint)
			r.Get("/history", s.GetHistory)
			r.Post("/import", s.Import)
			r.Get("/export", s.Export)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "outline-http",
		"version": s.Version,
	})
}

// session opens the project named in the URL, writing the error response on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.Engine.Open(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

// view reads the project named in the URL without opening an editing session.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (session.View, bool) {
	v, err := s.Engine.View(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return v, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "err", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvariantViolation), errors.Is(err, domain.ErrDuplicateNode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// collapsed reads the comma separated "collapsed" query parameter.
func collapsed(r *http.Request) domain.CollapseSet {
	raw := r.URL.Query().Get("collapsed")
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return domain.NewCollapseSet(ids...)
}
