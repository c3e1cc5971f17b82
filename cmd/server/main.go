package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/justinsane/ClassicRides/internal/config"
	"github.com/justinsane/ClassicRides/internal/gateway"
	"github.com/justinsane/ClassicRides/internal/memory"
	"github.com/justinsane/ClassicRides/internal/pipeline"
	"github.com/justinsane/ClassicRides/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		slog.Warn("config file not found, using defaults", "path", *configPath)
		cfg = config.Default()
	}

	setupLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AI.APIKey == "" {
		slog.Warn("no API key configured, generation calls will fail")
	}

	store, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to initialize scrapbook store", "error", err)
		os.Exit(1)
	}
	slog.Info("scrapbook store ready", "driver", cfg.Store.Driver, "key", cfg.Store.Key)

	gen := gateway.NewClient(cfg.AI)

	hub := web.NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	session := pipeline.NewSession(gen, store, hub)

	handlers := web.NewHandlers(gen, session, store, hub, cfg.AI.APIKey)
	router := web.NewRouter(handlers)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

func newStore(cfg *config.Config) (memory.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.NewMemStore(), nil
	case "file":
		return memory.NewFileStore(cfg.Store.File.Path)
	case "redis":
		return memory.NewRedisStore(cfg.Store.Redis, cfg.Store.Key)
	case "mysql":
		return memory.NewMySQLStore(cfg.Store.MySQL, cfg.Store.Key)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func setupLogger(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
