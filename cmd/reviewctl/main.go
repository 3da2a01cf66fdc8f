// reviewctl is an operator CLI acting as a review client: list the pending
// backlog, issue keep/delete decisions, or reset the pending queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/review"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		hubURL   string
		list     bool
		keepID   string
		deleteID string
		reset    bool
		wait     time.Duration
	)

	flag.StringVar(&hubURL, "hub", envOrDefault("HUB_URL", "ws://localhost:3000/ws"), "Hub websocket URL")
	flag.BoolVar(&list, "list", false, "Print the pending backlog")
	flag.StringVar(&keepID, "keep", "", "Send a keep decision for the given post id")
	flag.StringVar(&deleteID, "delete", "", "Send a delete decision for the given post id")
	flag.BoolVar(&reset, "reset", false, "Purge all pending posts")
	flag.DurationVar(&wait, "wait", 2*time.Second, "How long to wait for the backlog push")
	flag.Parse()

	if !list && keepID == "" && deleteID == "" && !reset {
		return fmt.Errorf("one of --list, --keep, --delete or --reset is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	client, err := review.NewClient(hubURL, logger)
	if err != nil {
		return fmt.Errorf("create review client: %w", err)
	}

	backlog := make(chan []domain.PostRecord, 1)
	client.OnPosts = func(posts []domain.PostRecord) {
		select {
		case backlog <- posts:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("hub connection failed", "error", err)
		}
	}()

	// Registration (and the backlog push it triggers) happens inside Run;
	// give it a moment before acting.
	select {
	case posts := <-backlog:
		if list {
			printPosts(posts)
		}
	case <-time.After(wait):
		if list {
			fmt.Println("no pending posts")
		}
	}

	switch {
	case keepID != "":
		if err := client.Keep(keepID); err != nil {
			return err
		}
		fmt.Printf("kept %s\n", keepID)
	case deleteID != "":
		if err := client.Delete(deleteID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", deleteID)
	case reset:
		if err := client.Reset(); err != nil {
			return err
		}
		fmt.Println("pending posts purged")
	}

	// Let the final frame flush before tearing the connection down.
	time.Sleep(200 * time.Millisecond)
	return nil
}

func printPosts(posts []domain.PostRecord) {
	for _, p := range posts {
		content := p.Content
		if len(content) > 60 {
			content = content[:60] + "..."
		}
		fmt.Printf("%s  %s  %s  %q\n", p.ID, p.CreatedAt.Format(time.RFC3339), p.AuthorHandle, content)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
