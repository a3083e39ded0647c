package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/backend/migrate"
	"github.com/plinth-dev/plinth/internal/backup"
	"github.com/plinth-dev/plinth/internal/cache"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/handler"
	"github.com/plinth-dev/plinth/internal/lock"
	"github.com/plinth-dev/plinth/internal/metrics"
	"github.com/plinth-dev/plinth/internal/service"
)

func main() {
	level := new(slog.LevelVar)
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}

	h, err := backend.NewFactory(cfg).Get()
	if err != nil {
		slog.Error("failed to open database", "database_type", cfg.DBType, "error", err)
		os.Exit(1)
	}
	defer h.Close()

	if status := h.TestConnection(context.Background()); status.OK {
		slog.Info("database connection verified", "database_type", cfg.DBType)
	} else {
		slog.Warn("database connection check failed", "database_type", cfg.DBType, "message", status.Message)
	}

	report, err := migrate.RunForBackend(context.Background(), h)
	switch {
	case err != nil:
		if cfg.MigrationsFailFast {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Warn("continuing startup; database schema may be outdated", "error", err)
	case report.Failed != nil:
		if cfg.MigrationsFailFast {
			slog.Error("migration step failed", "step", report.Failed.ID, "error", report.Failed.Err)
			os.Exit(1)
		}
		slog.Warn("continuing startup; database schema may be outdated", "step", report.Failed.ID, "error", report.Failed.Err)
	case len(report.Applied) > 0:
		slog.Info("database migrations applied", "count", len(report.Applied), "version", report.ToVersion)
	default:
		slog.Info("database schema up to date", "version", report.ToVersion)
	}

	backups, err := backup.New(cfg, h)
	if err != nil {
		slog.Error("failed to prepare backup directory", "error", err)
		os.Exit(1)
	}

	deps := handler.Deps{
		Cfg:     cfg,
		Backend: h,
		Backups: backups,
		Coord:   lock.New(cfg.LockFile, cfg.LockTTL),
		Metrics: metrics.New(),
		// Maintenance endpoints refill at five requests per minute with a
		// burst of five.
		Limiter: service.NewTokenBucket(5.0/60.0, 5),
	}

	if cfg.DBType.IsSQL() {
		deps.Examples = service.NewExampleService(h)
		if cfg.JWTSecret != "" {
			deps.Users = service.NewUserService(h)
			deps.Verifier = service.NewTokenVerifier(cfg.JWTSecret)
		} else {
			slog.Warn("JWT_SECRET not set; user endpoints disabled")
		}
	} else {
		deps.Nodes = service.NewNodeService(h)
	}
	if cfg.FilesDir != "" {
		deps.Files = service.NewFileService(cfg.FilesDir)
	}
	if cfg.RedisURL != "" {
		c, err := cache.New(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		deps.Cache = c
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler.Wrap(mux, deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "database_type", cfg.DBType, "image_tag", cfg.ImageTag)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
