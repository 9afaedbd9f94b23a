package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roadpulse/roadpulse/pkg/engine"
	"github.com/roadpulse/roadpulse/pkg/httputil"
	"github.com/roadpulse/roadpulse/pkg/observability"
)

// Server represents our API server
type Server struct {
	engine  *engine.Engine
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server over the engine. Logger and metrics
// may be nil in tests.
func NewServer(eng *engine.Engine, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		engine:  eng,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Write path
	v1.HandleFunc("/analyses", s.recordAnalysis).Methods("POST")
	v1.HandleFunc("/routes", s.recordRoute).Methods("POST")

	// Query surface
	v1.HandleFunc("/analytics", s.getAnalytics).Methods("GET")
	v1.HandleFunc("/hotspots/nearby", s.getNearbyHotspots).Methods("GET")
	v1.HandleFunc("/routes/best", s.getBestRoutes).Methods("GET")
	v1.HandleFunc("/storage/stats", s.getStorageStats).Methods("GET")

	// Export / import
	v1.HandleFunc("/export", s.exportAll).Methods("GET")
	v1.HandleFunc("/import", s.importAll).Methods("POST")

	// Backups
	v1.HandleFunc("/backups", s.triggerBackup).Methods("POST")
	v1.HandleFunc("/backups", s.listBackups).Methods("GET")
}

// Handler returns the router wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
	}
	if s.logger != nil {
		middlewares = append(middlewares,
			httputil.LoggingMiddleware(s.logger),
			httputil.RecoveryMiddleware(s.logger),
		)
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.metrics))
	}
	middlewares = append(middlewares, httputil.ContentTypeMiddleware)

	return httputil.Chain(middlewares...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
