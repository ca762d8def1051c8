// Package main is the entry point for the memdex paper-trading API server.
// It wires the snapshot store, the market engine, the WebSocket hub, and the
// HTTP router, then runs until a shutdown signal arrives.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/memdexlab/memdex/internal/api"
	"github.com/memdexlab/memdex/internal/config"
	"github.com/memdexlab/memdex/internal/engine"
	"github.com/memdexlab/memdex/internal/repository"
	"github.com/memdexlab/memdex/internal/ws"
	"github.com/shopspring/decimal"
)

func main() {
	// ── 1. Environment + logger ───────────────────────────────────────────────
	_ = godotenv.Load() // optional .env for local development

	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting memdex server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend)

	// ── 2. Snapshot store ─────────────────────────────────────────────────────
	store, err := openStore(cfg)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}

	// ── 3. Market engine ──────────────────────────────────────────────────────
	eng, err := engine.New(context.Background(), store,
		decimal.NewFromFloat(cfg.Market.StartingCash), logger)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	// ── 4. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub(cfg.Server.AllowedOrigins, logger)
	eng.SetBroadcaster(hub)

	// ── 5. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run()
	logger.Info("websocket hub started")

	// ── 6. HTTP router + server ───────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Engine: eng,
		Hub:    hub,
		Cfg:    cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 7. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if err = store.Close(); err != nil {
		logger.Error("store close error", "err", err)
	}
	logger.Info("server stopped cleanly")
}

// openStore builds the snapshot backend selected by STORE_BACKEND.  Both
// backends satisfy repository.DocumentStore; the engine never knows which
// one it writes to.
func openStore(cfg *config.Config) (repository.DocumentStore, error) {
	if cfg.Store.Backend == "sqlite" {
		return repository.NewSQLiteStore(cfg.Store.SQLitePath)
	}
	return repository.NewFileStore(cfg.Store.DataDir)
}
