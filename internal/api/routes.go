package api

import (
	"net/http"
	"time"

	"github.com/radio-control/lorabridge/internal/auth"
)

// RegisterRoutes registers the v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	m := s.opts.Auth
	if m == nil {
		mux.HandleFunc(apiV1+"/state", s.handleState)
		mux.HandleFunc(apiV1+"/telemetry", s.handleTelemetry)
		return
	}

	member := m.RequireRole(auth.RoleViewer, auth.RoleOperator)
	mux.HandleFunc(apiV1+"/state", m.RequireAuth(member(m.RequireScope(auth.ScopeRead)(s.handleState))))
	mux.HandleFunc(apiV1+"/telemetry", m.RequireAuth(member(m.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry))))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.opts.State == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"State not available", nil)
		return
	}

	WriteSuccess(w, s.opts.State.Snapshot())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.opts.Telemetry == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// Once streaming starts the headers are gone; a failure just ends the stream.
	_ = s.opts.Telemetry.Subscribe(r.Context(), w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	subsystems := map[string]bool{
		"telemetry": s.opts.Telemetry != nil,
		"state":     s.opts.State != nil,
	}

	health := map[string]interface{}{
		"status":     "ok",
		"node":       s.opts.Node,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
	}

	if !subsystems["state"] {
		health["status"] = "degraded"
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
		return
	}

	WriteSuccess(w, health)
}
