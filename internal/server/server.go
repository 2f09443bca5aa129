package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/game"
	"github.com/scythe504/coral-backend/internal/websocket"
	"go.uber.org/zap"
)

// History serves archived games. Nil when no database is configured.
type History interface {
	RecentResults(ctx context.Context, limit int) ([]internal.GameResult, error)
	Health(ctx context.Context) map[string]string
}

type Server struct {
	port      int
	publicURL string

	registry *game.Registry
	hub      *websocket.Hub
	history  History
	log      *zap.Logger
}

func New(port int, publicURL string, registry *game.Registry, hub *websocket.Hub, history History, logger *zap.Logger) *Server {
	return &Server{
		port:      port,
		publicURL: publicURL,
		registry:  registry,
		hub:       hub,
		history:   history,
		log:       logger,
	}
}

// HTTPServer wraps the routes in an http.Server. No write timeout: sockets are long lived.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
