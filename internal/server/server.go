// Package server exposes the HTTP surface of the parcel sorter: the
// JWT-protected rule administration API and the open device-facing parcel
// ingest endpoints.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"parcel-sorter/internal/config"
	"parcel-sorter/internal/orchestrator"
	"parcel-sorter/internal/ratelimit"
	"parcel-sorter/internal/sorting"
	"parcel-sorter/internal/storage"
)

// Server wires the HTTP handlers to the rule store, the rule engine and the
// orchestrator.
type Server struct {
	store        storage.Store
	engine       *sorting.Engine
	orchestrator *orchestrator.Orchestrator
	config       *config.Config
	limiter      *ratelimit.Limiter
	router       *mux.Router
}

// New creates a server and registers its routes. A nil limiter disables rate
// limiting on the ingest endpoints.
func New(store storage.Store, engine *sorting.Engine, orch *orchestrator.Orchestrator, cfg *config.Config, limiter *ratelimit.Limiter) *Server {
	s := &Server{
		store:        store,
		engine:       engine,
		orchestrator: orch,
		config:       cfg,
		limiter:      limiter,
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(LoggingMiddleware)

	// Rule administration requires a bearer token. Device ingest does not:
	// scanners and upstream systems sit on the closed sort-line network.
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(RequireAuth(s.config.JWTSecret))
	api.HandleFunc("/rules", s.ListRules).Methods("GET")
	api.HandleFunc("/rules", s.CreateRule).Methods("POST")
	api.HandleFunc("/rules/{id}", s.GetRule).Methods("GET")
	api.HandleFunc("/rules/{id}", s.UpdateRule).Methods("PUT")
	api.HandleFunc("/rules/{id}", s.DeleteRule).Methods("DELETE")

	ingest := s.router.PathPrefix("/parcels").Subrouter()
	if s.limiter != nil {
		ingest.Use(s.limiter.HTTPMiddleware(ratelimit.IPBasedKey))
	}
	ingest.HandleFunc("", s.CreateParcel).Methods("POST")
	ingest.HandleFunc("/{id}/measurement", s.ReceiveMeasurement).Methods("POST")
	ingest.HandleFunc("/{id}/ocr", s.ReceiveOCR).Methods("POST")
	ingest.HandleFunc("/{id}/api-response", s.AttachAPIResponse).Methods("POST")

	s.router.HandleFunc("/health", s.Health).Methods("GET")
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}
