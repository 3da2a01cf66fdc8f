package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/blackmichael/tweet-sweep/internal/config"
	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/httpserver"
	"github.com/blackmichael/tweet-sweep/internal/hub"
	"github.com/blackmichael/tweet-sweep/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	svc := domain.NewTriageService(repo, logger)

	advertise := cfg.AdvertiseAddress
	if advertise == "" {
		advertise = fmt.Sprintf("http://%s:%d", hub.LanIP(), cfg.Port)
	}
	logger.Info("advertising hub address to capture peers", "address", advertise)

	h := hub.New(svc, advertise, logger)

	server := httpserver.NewServer(cfg, h, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("hub started", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
