// Package api exposes the read-only query surface consumed by the external
// dashboard: status summary, per-check history, ring buffer snapshots, a
// live websocket result stream, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/metrics"
	"github.com/verimem/sentinel/internal/runner"
)

const maxHistoryLimit = 500

// Router wires the query endpoints. All endpoints are read-only; writes,
// reconfiguration, and control operations are deliberately absent.
type Router struct {
	mux    *http.ServeMux
	runner *runner.Runner
	hub    *Hub
}

// NewRouter builds the router over runner state.
func NewRouter(r *runner.Runner, hub *Hub) *Router {
	router := &Router{
		mux:    http.NewServeMux(),
		runner: r,
		hub:    hub,
	}
	router.mux.HandleFunc("/api/health", router.handleHealth)
	router.mux.HandleFunc("/api/status", router.handleStatus)
	router.mux.HandleFunc("/api/checks/", router.handleCheckHistory)
	router.mux.HandleFunc("/api/failures", router.handleFailures)
	router.mux.HandleFunc("/api/traces", router.handleTraces)
	router.mux.HandleFunc("/api/reports", router.handleReports)
	router.mux.Handle("/metrics", metrics.Handler())
	if hub != nil {
		router.mux.HandleFunc("/api/ws", hub.ServeWS)
	}
	return router
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, r.runner.StatusSummary())
}

// handleCheckHistory serves GET /api/checks/{id}/history?limit=N.
func (r *Router) handleCheckHistory(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	rest := strings.TrimPrefix(req.URL.Path, "/api/checks/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "history" {
		http.NotFound(w, req)
		return
	}
	checkID := parts[0]

	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be 1..%d", maxHistoryLimit))
			return
		}
		limit = parsed
	}

	history, err := r.runner.CheckHistory(checkID, limit)
	if err != nil {
		log.Error().Err(err).Str("check", checkID).Msg("History query failed")
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"check_id": checkID,
		"results":  history,
	})
}

func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, r.runner.RecentFailures())
}

func (r *Router) handleTraces(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, r.runner.RecentTraces())
}

func (r *Router) handleReports(w http.ResponseWriter, req *http.Request) {
	if !methodIs(w, req, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, r.runner.RecentReports())
}

func methodIs(w http.ResponseWriter, req *http.Request, method string) bool {
	if req.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Server hosts the router on its own listener.
type Server struct {
	http *http.Server
}

// NewServer binds the router to addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener closes. ErrServerClosed is swallowed.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("Query API listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
