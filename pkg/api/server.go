// Package api serves a read-only HTTP view of the decision store for
// dashboards: decision history, user contexts, analytics, installed
// extensions and registered skills.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/headelf/headelf/pkg/config"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/skills"
	"github.com/headelf/headelf/pkg/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// DecisionStore is the part of the persistence store the API reads from.
type DecisionStore interface {
	GetDecisionHistory(ctx context.Context, filter persistence.HistoryFilter) ([]persistence.DecisionRecord, error)
	GetDecision(ctx context.Context, id string) (*persistence.DecisionRecord, error)
	GetUserContext(ctx context.Context, userID string) (persistence.UserContext, error)
	GenerateAnalytics(ctx context.Context, tr *persistence.TimeRange) (*persistence.AnalyticsSnapshot, error)
	GetInstalledExtensions(ctx context.Context) (map[string]persistence.ExtensionManifestEntry, error)
}

// SkillLister lists registered skills.
type SkillLister interface {
	List() []*skills.Skill
	ByCategory(cat string) []*skills.Skill
}

// Server is the dashboard API server.
type Server struct {
	router *mux.Router
	store  DecisionStore
	skills SkillLister
	config config.ServeConfig
	server *http.Server
}

// DecisionsResponse is the body of GET /api/decisions.
type DecisionsResponse struct {
	Decisions []persistence.DecisionRecord `json:"decisions"`
	Total     int                          `json:"total"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewServer returns a server for store and registry listening on cfg.
func NewServer(store DecisionStore, registry SkillLister, cfg config.ServeConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		skills: registry,
		config: cfg,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/decisions", s.handleListDecisions).Methods(http.MethodGet)
	api.HandleFunc("/decisions/{id}", s.handleGetDecision).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/context", s.handleGetUserContext).Methods(http.MethodGet)
	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/extensions", s.handleListExtensions).Methods(http.MethodGet)
	api.HandleFunc("/skills", s.handleListSkills).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "not found", nil)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware allows read access from any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(r.Context(), w, map[string]any{
		"status":  "ok",
		"version": version.Get(),
	})
}

// handleListDecisions handles GET /api/decisions
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := persistence.HistoryFilter{
		UserID:        query.Get("user_id"),
		DecisionType:  query.Get("decision_type"),
		ExecutiveRole: query.Get("executive_role"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			s.writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid limit", errors.Errorf("limit must be a non-negative integer, got %q", limitStr))
			return
		}
		filter.Limit = limit
	}

	tr, err := parseTimeRange(query.Get("start"), query.Get("end"))
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid time range", err)
		return
	}
	filter.DateRange = tr

	decisions, err := s.store.GetDecisionHistory(ctx, filter)
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "failed to list decisions", err)
		return
	}

	s.writeJSONResponse(ctx, w, DecisionsResponse{Decisions: decisions, Total: len(decisions)})
}

// handleGetDecision handles GET /api/decisions/{id}
func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	decision, err := s.store.GetDecision(ctx, id)
	if errors.Is(err, persistence.ErrInvalidName) {
		s.writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid decision id", err)
		return
	}
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "failed to get decision", err)
		return
	}
	if decision == nil {
		s.writeErrorResponse(ctx, w, http.StatusNotFound, "decision not found", errors.Errorf("no decision with id %s", id))
		return
	}

	s.writeJSONResponse(ctx, w, decision)
}

// handleGetUserContext handles GET /api/users/{id}/context
func (s *Server) handleGetUserContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["id"]

	uc, err := s.store.GetUserContext(ctx, userID)
	if errors.Is(err, persistence.ErrInvalidName) {
		s.writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid user id", err)
		return
	}
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "failed to get user context", err)
		return
	}
	if uc == nil {
		s.writeErrorResponse(ctx, w, http.StatusNotFound, "user context not found", errors.Errorf("no context for user %s", userID))
		return
	}

	s.writeJSONResponse(ctx, w, uc)
}

// handleAnalytics handles GET /api/analytics. Each call persists a snapshot.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	tr, err := parseTimeRange(query.Get("start"), query.Get("end"))
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid time range", err)
		return
	}

	snapshot, err := s.store.GenerateAnalytics(ctx, tr)
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "failed to generate analytics", err)
		return
	}

	s.writeJSONResponse(ctx, w, snapshot)
}

// handleListExtensions handles GET /api/extensions
func (s *Server) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	extensions, err := s.store.GetInstalledExtensions(ctx)
	if err != nil {
		s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "failed to list extensions", err)
		return
	}

	s.writeJSONResponse(ctx, w, extensions)
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	var list []*skills.Skill
	if cat := r.URL.Query().Get("category"); cat != "" {
		list = s.skills.ByCategory(cat)
	} else {
		list = s.skills.List()
	}
	s.writeJSONResponse(r.Context(), w, list)
}

// parseTimeRange returns nil when both bounds are empty.
func parseTimeRange(start, end string) (*persistence.TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	for _, v := range []string{start, end} {
		if v == "" {
			continue
		}
		if _, err := persistence.ParseTimestamp(v); err != nil {
			return nil, err
		}
	}
	return &persistence.TimeRange{Start: start, End: end}, nil
}

func (s *Server) writeJSONResponse(ctx context.Context, w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
		entry := logger.G(ctx).WithError(err).WithField("status", statusCode)
		if statusCode >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Debug(message)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "failed to serve")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	return nil
}
