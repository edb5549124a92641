package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"homedash/internal/config"
	"homedash/internal/devices"
	"homedash/internal/notify"
	"homedash/internal/registry"
)

// Server exposes the dashboard-facing JSON surface: backend management
// commands, entity and room snapshots, and notification state. Rendering
// is entirely external.
type Server struct {
	registry *registry.Registry
	notifier *notify.Center
	logger   *zap.Logger
	server   *http.Server

	custMu         sync.RWMutex
	customizations map[string]devices.Customization
}

// NewServer builds the HTTP server on the given address.
func NewServer(reg *registry.Registry, notifier *notify.Center, logger *zap.Logger, addr string) *Server {
	s := &Server{
		registry:       reg,
		notifier:       notifier,
		logger:         logger,
		customizations: make(map[string]devices.Customization),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/backends", s.handleListBackends)
	mux.HandleFunc("POST /api/backends", s.handleAddBackend)
	mux.HandleFunc("DELETE /api/backends/{id}", s.handleRemoveBackend)
	mux.HandleFunc("POST /api/backends/{id}/select", s.handleSelectBackend)
	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("POST /api/services/call", s.handleCallService)
	mux.HandleFunc("PUT /api/customizations/{entity}", s.handleSetCustomization)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// backendView is a Backend with the credential stripped.
type backendView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// BackendsResponse lists configured backends with their connection
// status and the active selection.
type BackendsResponse struct {
	Backends []backendView              `json:"backends"`
	Statuses map[string]registry.Status `json:"statuses"`
	Active   string                     `json:"active,omitempty"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	backends := s.registry.Backends()
	views := make([]backendView, 0, len(backends))
	for _, b := range backends {
		views = append(views, backendView{ID: b.ID, Name: b.Name, URL: b.URL, Enabled: b.Enabled})
	}

	writeJSON(w, http.StatusOK, BackendsResponse{
		Backends: views,
		Statuses: s.registry.Statuses().Get(),
		Active:   s.registry.ActiveID(),
	})
}

type addBackendRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Token string `json:"token"`
}

func (s *Server) handleAddBackend(w http.ResponseWriter, r *http.Request) {
	var req addBackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	backend, err := config.NewBackend(req.Name, req.URL, req.Token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.registry.Add(backend); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusCreated, backendView{
		ID: backend.ID, Name: backend.Name, URL: backend.URL, Enabled: backend.Enabled,
	})
}

func (s *Server) handleRemoveBackend(w http.ResponseWriter, r *http.Request) {
	s.registry.Remove(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectBackend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.registry.Select(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": id})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	session := s.registry.Active()
	if session == nil {
		http.Error(w, "no active backend", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, session.Entities().Get())
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	session := s.registry.Active()
	if session == nil {
		http.Error(w, "no active backend", http.StatusServiceUnavailable)
		return
	}

	tables, err := session.FetchRegistry(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch registry tables", zap.Error(err))
		http.Error(w, "registry fetch failed", http.StatusBadGateway)
		return
	}

	showHidden := r.URL.Query().Get("show_hidden") == "true"

	s.custMu.RLock()
	customizations := make(map[string]devices.Customization, len(s.customizations))
	for k, v := range s.customizations {
		customizations[k] = v
	}
	s.custMu.RUnlock()

	rooms := devices.GroupRooms(session.Entities().Get(), tables, customizations, showHidden, nil)
	writeJSON(w, http.StatusOK, rooms)
}

type callServiceRequest struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data"`
}

func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	session := s.registry.Active()
	if session == nil {
		http.Error(w, "no active backend", http.StatusServiceUnavailable)
		return
	}

	var req callServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Domain == "" || req.Service == "" {
		http.Error(w, "domain and service are required", http.StatusBadRequest)
		return
	}

	result, err := session.CallService(r.Context(), req.Domain, req.Service, req.Data)
	if err != nil {
		s.logger.Error("Service call failed",
			zap.String("domain", req.Domain),
			zap.String("service", req.Service),
			zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	w.Write(result)
}

func (s *Server) handleSetCustomization(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entity")

	var cust devices.Customization
	if err := json.NewDecoder(r.Body).Decode(&cust); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.custMu.Lock()
	s.customizations[entityID] = cust
	s.custMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := s.notifier.Notifications().Get()
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
