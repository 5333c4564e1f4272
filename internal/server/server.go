package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/models"
	"github.com/gladiators/warstats/internal/service"
)

const defaultDisplayWeeks = 10

// Server exposes the snapshot to the presentation layer and serves the
// static frontend. It is read-only: every response comes from the latest
// published snapshot, never from a mid-cycle state.
type Server struct {
	warService *service.WarService
	cfg        config.Server
	router     *mux.Router
}

func New(warService *service.WarService, cfg config.Server) *Server {
	s := &Server{
		warService: warService,
		cfg:        cfg,
		router:     mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.securityHeaders)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/clan/members", s.handleMembers).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/clan/warlog", s.handleWarLog).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/clan/leaderboard", s.handleLeaderboard).Methods(http.MethodGet, http.MethodOptions)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.StaticDir)))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	slog.Info("HTTP server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	includeFormer := r.URL.Query().Get("includeFormer") == "1"
	members := s.warService.FetchMembers(includeFormer)
	writeJSON(w, map[string]any{"members": members})
}

func (s *Server) handleWarLog(w http.ResponseWriter, r *http.Request) {
	maxWeeks := queryInt(r, "maxWeeks", 0)
	writeJSON(w, map[string]any{
		"warLog":          s.warService.MergedWeeks(maxWeeks),
		"warLogAvailable": s.warService.WarLogAvailable(),
		"lastRefreshed":   formatTime(s.warService.LastRefreshed()),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	maxWeeks := queryInt(r, "maxWeeks", defaultDisplayWeeks)
	rows, labels := s.warService.PlayerView(maxWeeks)
	if rows == nil {
		rows = []models.PlayerRow{}
	}
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, map[string]any{
		"players":         rows,
		"weekLabels":      labels,
		"warLogAvailable": s.warService.WarLogAvailable(),
		"lastRefreshed":   formatTime(s.warService.LastRefreshed()),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
