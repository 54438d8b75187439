// Package server provides the HTTP server for the Shopsight control panel.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tugdual/shopsight/internal/auth"
	"github.com/tugdual/shopsight/internal/capture"
	"github.com/tugdual/shopsight/internal/store"
	"github.com/tugdual/shopsight/internal/training"
	"github.com/tugdual/shopsight/internal/zones"
)

// Config holds the server configuration.
type Config struct {
	Log         zerolog.Logger
	StaticDir   string
	Camera      *capture.Session
	Zones       *zones.Store
	Training    *training.Simulator
	Store       *store.Store
	Sessions    *auth.Manager
	Credentials auth.CredentialProvider
}

// Server represents the HTTP server for the panel.
type Server struct {
	config Config
	router *mux.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes. Every /api route except health
// and login sits behind the session middleware; training routes are
// admin-only. Route order matters: the authenticated catch-all subrouter is
// registered last so the more specific subrouters match first.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	trainingRoutes := api.PathPrefix("/training").Subrouter()
	trainingRoutes.Use(s.config.Sessions.RequireAuth, s.config.Sessions.RequireAdmin)
	trainingRoutes.HandleFunc("/start", s.handleTrainingStart).Methods(http.MethodPost)
	trainingRoutes.HandleFunc("/stop", s.handleTrainingStop).Methods(http.MethodPost)
	trainingRoutes.HandleFunc("/status", s.handleTrainingStatus).Methods(http.MethodGet)
	trainingRoutes.HandleFunc("/history", s.handleTrainingHistory).Methods(http.MethodGet)
	trainingRoutes.Handle("/ws", NewTrainingProgressHandler(s.config.Training, s.config.Log)).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.config.Sessions.RequireAuth)
	authed.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/camera/connect", s.handleCameraConnect).Methods(http.MethodPost)
	authed.HandleFunc("/camera/disconnect", s.handleCameraDisconnect).Methods(http.MethodPost)
	authed.HandleFunc("/camera/frame", s.handleCameraFrame).Methods(http.MethodGet)
	authed.HandleFunc("/camera/status", s.handleCameraStatus).Methods(http.MethodGet)
	authed.HandleFunc("/camera/stream", s.handleCameraStream).Methods(http.MethodGet)
	authed.Handle("/camera/ws", NewFramesHandler(s.config.Camera, s.config.Log)).Methods(http.MethodGet)
	authed.HandleFunc("/zones/save", s.handleZonesSave).Methods(http.MethodPost)
	authed.HandleFunc("/zones/load", s.handleZonesLoad).Methods(http.MethodGet)

	if s.config.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.start)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime.String(),
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// resultResponse is the generic success/message envelope every mutating
// endpoint returns.
type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeResult writes the success/message envelope.
func writeResult(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, resultResponse{Success: success, Message: message})
}
