package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfactory/internal/config"
	"coinfactory/internal/db"
	"coinfactory/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
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

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "factory-worker")
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(pool, logger, catalog, game.DefaultStarterWallet)
	if cfg.EnsureSchema {
		if err := svc.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema failed", "err", err)
			os.Exit(1)
		}
	}

	if cfg.RunOnce {
		n, err := svc.RunCycleTick(ctx)
		if err != nil {
			logger.Error("cycle tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "factories", n)
		return
	}

	ticker := time.NewTicker(cfg.CycleEvery)
	defer ticker.Stop()

	logger.Info("worker started", "cycle_every", cfg.CycleEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			started := time.Now()
			n, err := svc.RunCycleTick(ctx)
			if err != nil {
				logger.Error("cycle tick failed", "err", err, "factories", n)
				continue
			}
			logger.Info("cycle tick complete", "factories", n, "took", time.Since(started).String())
		}
	}
}
