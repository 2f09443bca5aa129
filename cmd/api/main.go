package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scythe504/coral-backend/internal/catalog"
	"github.com/scythe504/coral-backend/internal/config"
	"github.com/scythe504/coral-backend/internal/database"
	"github.com/scythe504/coral-backend/internal/game"
	"github.com/scythe504/coral-backend/internal/logger"
	"github.com/scythe504/coral-backend/internal/server"
	"github.com/scythe504/coral-backend/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "coral: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.IsLocal())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []game.Option{game.WithLogger(log), game.WithConfig(cfg.Game)}

	// The archive is optional; without it finished games are only logged
	var history server.History
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, game.WithArchive(db))
		history = db
	} else {
		log.Warn("[main] DATABASE_URL not set, game history disabled")
	}

	engine := game.NewEngine(cat, nil, opts...)
	hub := websocket.NewHub(engine, log)
	engine.SetNotifier(hub)

	janitor, err := game.NewJanitor(engine.Registry(), game.RealClock(), cfg.RoomIdleGrace, cfg.JanitorSchedule, log)
	if err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	srv := server.New(cfg.Port, cfg.PublicURL, engine.Registry(), hub, history, log).HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info("[main] server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("[main] server stopped")
	return nil
}
