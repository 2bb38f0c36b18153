// Package httpapi wires the HTTP surface: route registration, middleware,
// and per-route handlers composing the resolver/clarify/workflow/memory
// layers into full-turn responses.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/newgpp/parksuite-core/internal/clarify"
	"github.com/newgpp/parksuite-core/internal/config"
	"github.com/newgpp/parksuite-core/internal/knowledge"
	"github.com/newgpp/parksuite-core/internal/memory"
	"github.com/newgpp/parksuite-core/internal/observability"
	"github.com/newgpp/parksuite-core/internal/resolver"
	"github.com/newgpp/parksuite-core/internal/workflow"
)

// Server bundles the router with every collaborator a handler needs.
type Server struct {
	router  *mux.Router
	server  *http.Server
	address string
	log     zerolog.Logger
	metrics *observability.Metrics

	cfg      *config.Settings
	memStore memory.Store
	repo     knowledge.Repository
	parser   *resolver.Parser
	hydrator *resolver.Hydrator
	gate     *clarify.Gate
	react    clarify.ReactRunner
	workflow *workflow.HybridWorkflow
}

// Deps is the collaborator bundle NewServer wires into routes.
type Deps struct {
	Config   *config.Settings
	MemStore memory.Store
	Repo     knowledge.Repository
	Parser   *resolver.Parser
	Hydrator *resolver.Hydrator
	Gate     *clarify.Gate
	React    clarify.ReactRunner
	Workflow *workflow.HybridWorkflow
}

// NewServer builds a Server with routes registered but not yet listening.
func NewServer(address string, log zerolog.Logger, metrics *observability.Metrics, deps Deps) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		address:  address,
		log:      log,
		metrics:  metrics,
		cfg:      deps.Config,
		memStore: deps.MemStore,
		repo:     deps.Repo,
		parser:   deps.Parser,
		hydrator: deps.Hydrator,
		gate:     deps.Gate,
		react:    deps.React,
		workflow: deps.Workflow,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.traceIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/answer/hybrid", s.handleAnswerHybrid).Methods(http.MethodPost)
	v1.HandleFunc("/retrieve", s.handleRetrieve).Methods(http.MethodPost)
	v1.HandleFunc("/knowledge/sources", s.handleUpsertSource).Methods(http.MethodPost)
	v1.HandleFunc("/knowledge/chunks/batch", s.handleIngestChunksBatch).Methods(http.MethodPost)
	v1.HandleFunc("/debug/intent-slot-parse", s.handleDebugIntentSlotParse).Methods(http.MethodPost)
	v1.HandleFunc("/debug/clarify-react", s.handleDebugClarifyReact).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "parksuite-core",
	})
}

// Start begins serving until Stop is called or ListenAndServe fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info().Str("addr", s.address).Msg("starting parksuite-core HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	return nil
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("shutting down parksuite-core HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}
