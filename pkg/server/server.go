// Package server exposes the suggestion store, skill metrics and
// verification results over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/suggestions"
	skilltypes "github.com/jingkaihe/skillsmith/pkg/types/skills"
	"github.com/jingkaihe/skillsmith/pkg/verify"
)

// Server serves the HTTP API
type Server struct {
	router    *mux.Router
	store     *suggestions.Store
	discovery *skills.Discovery
	verifier  *verify.Verifier
	config    *Config
	server    *http.Server
}

// Config holds the listen address of the server
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// New creates a server over the given store, skill discovery and verifier
func New(config *Config, store *suggestions.Store, discovery *skills.Discovery, verifier *verify.Verifier) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if verifier == nil {
		verifier = verify.New()
	}

	s := &Server{
		router:    mux.NewRouter(),
		store:     store,
		discovery: discovery,
		verifier:  verifier,
		config:    config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/suggestions", s.handleListSuggestions).Methods("GET", "OPTIONS")
	api.HandleFunc("/metrics", s.handleListMetrics).Methods("GET", "OPTIONS")
	api.HandleFunc("/metrics/{skill}", s.handleGetMetrics).Methods("GET", "OPTIONS")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET", "OPTIONS")
	api.HandleFunc("/skills/{skill}/verify", s.handleVerifySkill).Methods("GET", "OPTIONS")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

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

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SuggestionsResponse is returned by GET /api/suggestions
type SuggestionsResponse struct {
	Suggestions []skilltypes.Suggestion `json:"suggestions"`
	Total       int                     `json:"total"`
}

// MetricsResponse is returned by GET /api/metrics
type MetricsResponse struct {
	Metrics []MetricsView `json:"metrics"`
}

// MetricsView is a metrics record plus its derived values
type MetricsView struct {
	skilltypes.SkillMetrics
	SuccessRate   float64 `json:"success_rate"`
	AvgExecTimeMs float64 `json:"avg_exec_time_ms"`
}

func newMetricsView(m skilltypes.SkillMetrics) MetricsView {
	return MetricsView{SkillMetrics: m, SuccessRate: m.SuccessRate(), AvgExecTimeMs: m.AvgExecTimeMs()}
}

// SkillView describes a discovered skill
type SkillView struct {
	skills.Skill
	Pending int `json:"pending"`
}

// SkillsResponse is returned by GET /api/skills
type SkillsResponse struct {
	Skills []SkillView `json:"skills"`
}

// handleListSuggestions handles GET /api/suggestions
func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pending := s.store.Pending(skilltypes.Filter{
		SkillName: query.Get("skill"),
		UserID:    query.Get("user"),
		Org:       query.Get("org"),
	})
	if pending == nil {
		pending = []skilltypes.Suggestion{}
	}
	s.writeJSONResponse(w, SuggestionsResponse{Suggestions: pending, Total: len(pending)})
}

// handleListMetrics handles GET /api/metrics
func (s *Server) handleListMetrics(w http.ResponseWriter, _ *http.Request) {
	all := s.store.AllMetrics()
	views := make([]MetricsView, 0, len(all))
	for _, m := range all {
		views = append(views, newMetricsView(m))
	}
	s.writeJSONResponse(w, MetricsResponse{Metrics: views})
}

// handleGetMetrics handles GET /api/metrics/{skill}
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["skill"]
	s.writeJSONResponse(w, newMetricsView(s.store.Metrics(name)))
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	found, err := s.discovery.DiscoverSkills()
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to discover skills", err)
		return
	}

	counts := map[string]int{}
	for _, batch := range s.store.PendingBySkill(skilltypes.Filter{}) {
		counts[batch.SkillName] = len(batch.Suggestions)
	}

	views := make([]SkillView, 0, len(found))
	for _, name := range skills.SortedNames(found) {
		views = append(views, SkillView{Skill: *found[name], Pending: counts[name]})
	}
	s.writeJSONResponse(w, SkillsResponse{Skills: views})
}

// handleVerifySkill handles GET /api/skills/{skill}/verify
func (s *Server) handleVerifySkill(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["skill"]

	skill, err := s.discovery.GetSkill(name)
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, fmt.Sprintf("skill not found: %s", name), nil)
		return
	}

	result := s.verifier.VerifyFile(r.Context(), skill.Path)
	result.SkillName = skill.Name
	s.writeJSONResponse(w, result)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(ctx).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Serving skillsmith API on http://%s/api", address))

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
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the server immediately
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
