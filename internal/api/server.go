// Package api exposes the scheduler control surface and the listener
// attachment point. GET endpoints are public (read-only observation); control
// POSTs require a bearer token. The settlement/structure CRUD surface lives
// in a different service.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/sim"
)

// Server serves scheduler status, control, and the event stream.
type Server struct {
	Scheduler *sim.Scheduler
	Hub       *events.Hub
	Port      int
	AdminKey  string // Bearer token for control endpoints. Empty = control disabled.

	upgrader websocket.Upgrader
}

// Routes returns the HTTP handler; split out so tests can mount it on
// httptest servers.
func (s *Server) Routes() http.Handler {
	attachLimiter := NewRateLimiter(30, time.Minute)
	joinLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/ws", RateLimitMiddleware(attachLimiter, s.handleStream))

	mux.HandleFunc("/api/v1/register", s.adminOnly(s.handleRegister))
	mux.HandleFunc("/api/v1/unregister", s.adminOnly(s.handleUnregister))
	mux.HandleFunc("/api/v1/join", RateLimitMiddleware(joinLimiter, s.adminOnly(s.handleJoin)))
	mux.HandleFunc("/api/v1/leave", s.adminOnly(s.handleLeave))
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")
	go func() {
		if err := http.ListenAndServe(addr, s.Routes()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Scheduler.Status())
}

// handleStream upgrades to websocket and attaches the listener to its world.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world")
	if worldID == "" {
		http.Error(w, "missing world parameter", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.Hub.Attach(worldID, conn)
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" || r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type registerRequest struct {
	SettlementID string `json:"settlement_id"`
	OwnerID      string `json:"owner_id"`
	WorldID      string `json:"world_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SettlementID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.Scheduler.Register(req.SettlementID, req.OwnerID, req.WorldID)
	writeJSON(w, s.Scheduler.Status())
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SettlementID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.Scheduler.Unregister(req.SettlementID)
	writeJSON(w, s.Scheduler.Status())
}

type ownerRequest struct {
	OwnerID string `json:"owner_id"`
}

// handleJoin bulk-registers all of a player's settlements on world join.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.Scheduler.RegisterOwner(r.Context(), req.OwnerID); err != nil {
		slog.Error("bulk register failed", "owner", req.OwnerID, "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Scheduler.Status())
}

// handleLeave bulk-unregisters a player's settlements on world leave.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.Scheduler.UnregisterOwner(req.OwnerID)
	writeJSON(w, s.Scheduler.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
