package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/game"
	"github.com/scythe504/coral-backend/internal/logger"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultQRSize       = 256
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)
	r.Use(logger.RequestLogger(s.log))

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.RoomHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}/qr", s.RoomQRHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/history", s.HistoryHandler).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.hub.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON sends data inside the timed response envelope.
func (s *Server) writeJSON(w http.ResponseWriter, start time.Time, status int, data any) {
	end := time.Now().UnixMilli()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: start.UnixMilli(),
		RespEndTime:   end,
		NetRespTime:   end - start.UnixMilli(),
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("[writeJSON] encode failed", zap.Error(err))
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	health := map[string]any{
		"status":      "up",
		"rooms":       s.registry.Len(),
		"connections": s.hub.Len(),
	}
	if s.history != nil {
		health["database"] = s.history.Health(r.Context())
	}
	s.writeJSON(w, start, http.StatusOK, health)
}

func (s *Server) RoomHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := s.registry.Summary(mux.Vars(r)["code"])
	if errors.Is(err, game.ErrRoomNotFound) {
		s.writeJSON(w, start, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		s.writeJSON(w, start, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, start, http.StatusOK, summary)
}

// JoinURL is the link players open to join code.
func (s *Server) JoinURL(code string) string {
	return fmt.Sprintf("%s/join/%s", strings.TrimRight(s.publicURL, "/"), code)
}

// RoomQRHandler renders the join link of a live room as a PNG for the host display.
func (s *Server) RoomQRHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := s.registry.Summary(mux.Vars(r)["code"])
	if err != nil {
		s.writeJSON(w, start, http.StatusNotFound, "room not found")
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			s.writeJSON(w, start, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qrcode.Encode(s.JoinURL(summary.Code), qrcode.Medium, size)
	if err != nil {
		s.log.Error("[RoomQRHandler] encode failed", zap.String("room", summary.Code), zap.Error(err))
		s.writeJSON(w, start, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.history == nil {
		s.writeJSON(w, start, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeJSON(w, start, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	results, err := s.history.RecentResults(r.Context(), limit)
	if err != nil {
		s.log.Error("[HistoryHandler] query failed", zap.Error(err))
		s.writeJSON(w, start, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, start, http.StatusOK, results)
}
