// The agent runs the capture pipeline: scraping posts from a page, forwarding
// them to the hub, and executing delete commands the hub sends back. This
// binary drives the pipeline against an HTML snapshot file (SNAPSHOT_PATH),
// which is how the loop and executor are exercised outside a live browser.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/blackmichael/tweet-sweep/internal/browser"
	"github.com/blackmichael/tweet-sweep/internal/capture"
	"github.com/blackmichael/tweet-sweep/internal/config"
	"github.com/blackmichael/tweet-sweep/internal/extract"
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
	if cfg.SnapshotPath == "" {
		return fmt.Errorf("SNAPSHOT_PATH is required")
	}

	page := browser.NewStaticPage(cfg.SnapshotPath, cfg.PagePath, logger)
	engine := extract.NewEngine(logger)
	executor := capture.NewExecutor(page, logger)

	client := capture.NewClient(cfg.HubURL, executor.Delete, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("hub client exited with error", "error", err)
		}
	}()

	loop := capture.NewLoop(page, engine, client, cfg.CaptureInterval, logger)
	loop.Start(ctx)
	defer loop.Stop()

	logger.Info("agent started", "hub", cfg.HubURL, "snapshot", cfg.SnapshotPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	return nil
}
