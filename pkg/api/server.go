// Package api exposes the membership and access-check HTTP surface.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cairnhq/cairn/pkg/middleware"
	"github.com/cairnhq/cairn/pkg/observability"
	"github.com/cairnhq/cairn/pkg/tracker"
)

// Server represents the API server
type Server struct {
	router  *mux.Router
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics

	guards  *tracker.Guards
	members *tracker.MemberService
}

// NewServer creates a new API server
func NewServer(db *sql.DB, guards *tracker.Guards, members *tracker.MemberService, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		db:      db,
		logger:  logger,
		metrics: metrics,
		guards:  guards,
		members: members,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Handle("/healthz", observability.HealthHandler(s.db)).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.RequestID)
	v1.Use(middleware.NewActorMiddleware(false).Handler)
	if s.metrics != nil {
		v1.Use(s.metrics.HTTPMiddleware)
	}

	// Member management on membership-bearing containers
	v1.HandleFunc("/{kind:workspaces|projects|boards}/{id:[0-9]+}/members", s.listMembers).Methods("GET")
	v1.HandleFunc("/{kind:workspaces|projects|boards}/{id:[0-9]+}/members", s.addMember).Methods("POST")
	v1.HandleFunc("/{kind:workspaces|projects|boards}/{id:[0-9]+}/members/{userID:[0-9]+}/role", s.updateMemberRole).Methods("PUT")
	v1.HandleFunc("/{kind:workspaces|projects|boards}/{id:[0-9]+}/members/{userID:[0-9]+}/comment", s.updateMemberComment).Methods("PUT")
	v1.HandleFunc("/{kind:workspaces|projects|boards}/{id:[0-9]+}/members/{userID:[0-9]+}", s.removeMember).Methods("DELETE")

	// Access checks across the whole hierarchy
	v1.HandleFunc("/access/{family:workspaces|projects|milestones|tasks|boards|cards}/{id:[0-9]+}", s.checkAccess).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
