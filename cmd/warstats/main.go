package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gladiators/warstats/internal/api/clash"
	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/derive"
	"github.com/gladiators/warstats/internal/repository/memory"
	"github.com/gladiators/warstats/internal/scheduler"
	"github.com/gladiators/warstats/internal/server"
	"github.com/gladiators/warstats/internal/service"
	"github.com/gladiators/warstats/internal/store"
	"github.com/gladiators/warstats/internal/warlog"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Error running application", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded", "error", err)
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}

	boundary, err := warlog.NewBoundary(cfg.Policy)
	if err != nil {
		return err
	}

	clashClient := clash.NewClient(cfg.ClashAPI)
	clashAPI := clash.NewAPI(clashClient)
	if clashAPI.DemoMode() {
		slog.Warn("CLASH_ROYALE_API_KEY not set or invalid, running in demo mode with sample data")
	}

	st := store.New(cfg.History.DataDir)
	merger := warlog.NewMerger(st, boundary, cfg.History.MaxWeeks)
	engine := derive.NewEngine(derive.PolicyFromConfig(cfg.Policy, boundary))
	repo := memory.NewRepository()
	warService := service.NewWarService(clashAPI, st, merger, engine, repo, boundary, cfg.History.MaxWeeks)

	// Warm the snapshot before the first scheduled tick.
	if err := warService.Refresh(); err != nil {
		slog.Warn("Initial refresh failed, serving persisted history until next cycle", "error", err)
	}

	sched, err := scheduler.NewScheduler(warService, cfg.Refresh, boundary.Location)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			slog.Error("Error stopping scheduler", "error", err)
		}
	}()

	srv := server.New(warService, cfg.Server)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("Error starting HTTP server", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("Shutting down gracefully...")

	return nil
}
