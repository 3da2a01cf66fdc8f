package hub_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/tweet-sweep/internal/capture"
	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/hub"
	"github.com/blackmichael/tweet-sweep/internal/review"
	"github.com/blackmichael/tweet-sweep/internal/sqlite"
)

// TestPipelineEndToEnd drives the full path with the real clients and store:
// capture forwards a batch, review receives it, a delete decision lands back
// at capture as a command, and the stored record ends up DELETED.
func TestPipelineEndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := domain.NewTriageService(repo, logger)
	h := hub.New(svc, "http://192.0.2.1:3000", logger)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Review side.
	reviewClient, err := review.NewClient(wsURL, logger)
	if err != nil {
		t.Fatal(err)
	}
	received := make(chan []domain.PostRecord, 8)
	resets := make(chan struct{}, 1)
	reviewClient.OnPosts = func(posts []domain.PostRecord) { received <- posts }
	reviewClient.OnReset = func() { resets <- struct{}{} }
	go reviewClient.Run(ctx)

	// Capture side.
	deleteCommands := make(chan string, 8)
	captureClient := capture.NewClient(wsURL, func(_ context.Context, id string) {
		deleteCommands <- id
	}, logger)
	go captureClient.Run(ctx)

	// Forward a batch once the capture connection is up.
	batch := []domain.PostRecord{{
		ID:           "42",
		Content:      "soon to be gone",
		AuthorName:   "Alice",
		AuthorHandle: "@alice",
	}}
	sendDeadline := time.Now().Add(3 * time.Second)
	for {
		if err := captureClient.SendBatch(ctx, batch); err == nil {
			break
		}
		if time.Now().After(sendDeadline) {
			t.Fatal("capture client never connected to the hub")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Review receives it.
	select {
	case posts := <-received:
		if len(posts) != 1 || posts[0].ID != "42" {
			t.Fatalf("review received %+v, want post 42", posts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("review client never received the batch")
	}

	// Decide delete; the command comes back around to capture.
	if err := reviewClient.Delete("42"); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-deleteCommands:
		if id != "42" {
			t.Fatalf("delete command for %q, want 42", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("capture client never received the delete command")
	}

	// The store reflects the decision.
	statusDeadline := time.Now().Add(3 * time.Second)
	for {
		post, err := repo.GetPost(ctx, "42")
		if err == nil && post.Status == domain.StatusDeleted {
			break
		}
		if time.Now().After(statusDeadline) {
			t.Fatalf("stored post never reached DELETED (last: %+v, %v)", post, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Reset clears what remains pending and tells review to drop its queue.
	if err := reviewClient.Reset(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-resets:
	case <-time.After(3 * time.Second):
		t.Fatal("review client never saw the reset")
	}
	if pending := reviewClient.Pending(); len(pending) != 0 {
		t.Fatalf("review queue not cleared: %+v", pending)
	}
}
