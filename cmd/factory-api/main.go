package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfactory/internal/api"
	"coinfactory/internal/auth"
	"coinfactory/internal/config"
	"coinfactory/internal/db"
	"coinfactory/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	catalog, err := game.LoadCatalog(cfg.PricingFile)
	if err != nil {
		logger.Error("load catalog failed", "err", err, "pricing_file", cfg.PricingFile)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "factory-api")
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	authClient := auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	gameSvc := game.NewService(pool, logger, catalog, cfg.StarterWallet)
	if cfg.EnsureSchema {
		if err := gameSvc.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema failed", "err", err)
			os.Exit(1)
		}
	}

	server := api.New(logger, authClient, gameSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("factory api listening", "addr", cfg.Addr, "upgrades", catalog.UpgradeCount())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
