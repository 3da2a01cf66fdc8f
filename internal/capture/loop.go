package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/tweet-sweep/internal/browser"
	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/extract"
)

const (
	// DefaultInterval deliberately lags what is technically possible so the
	// loop never outruns the page's own lazy rendering.
	DefaultInterval = 4 * time.Second

	// scrollNudge is the small downward scroll after each tick that coaxes
	// the page into loading more content. Kept small to avoid skipping posts.
	scrollNudge = 150
)

// BatchSender forwards extracted records toward the relay hub.
type BatchSender interface {
	SendBatch(ctx context.Context, posts []domain.PostRecord) error
}

// Loop drives the extraction engine on a timer: each tick scrapes the current
// DOM, forwards any records, and nudges the page to reveal more content.
type Loop struct {
	page     browser.Page
	engine   *extract.Engine
	sender   BatchSender
	interval time.Duration
	logger   *slog.Logger

	// OnSendError, if set, is consulted when forwarding a batch fails after
	// the failure has been logged. Returning false stops the loop; the
	// default is to keep ticking and let the next scrape retry naturally.
	OnSendError func(error) bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLoop creates a capture loop. A non-positive interval falls back to
// DefaultInterval.
func NewLoop(page browser.Page, engine *extract.Engine, sender BatchSender, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		page:     page,
		engine:   engine,
		sender:   sender,
		interval: interval,
		logger:   logger,
	}
}

// Start begins ticking. Starting an already running loop is a no-op. The
// first tick runs immediately.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.logger.Info("capture loop started", "interval", l.interval)
	go l.run(ctx)
}

// Stop cancels the loop's timer. Stopping a stopped loop is a no-op. An
// in-flight tick finishes on its own.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.logger.Info("capture loop stopped")
}

// Running reports whether the loop is currently started.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context) {
	l.tick(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	doc, err := l.page.Document(ctx)
	if err != nil {
		l.logger.Error("failed to read page document", "error", err)
		return
	}

	records := l.engine.Extract(doc, l.page.Path())
	if len(records) > 0 {
		l.logger.Info("scraped posts", "count", len(records))
		if err := l.sender.SendBatch(ctx, records); err != nil {
			// The batch is lost; the next tick re-discovers the same posts
			// and the hub ingests idempotently.
			l.logger.Warn("failed to forward batch", "count", len(records), "error", err)
			if l.OnSendError != nil && !l.OnSendError(err) {
				go l.Stop()
				return
			}
		}
	}

	if err := l.page.ScrollBy(ctx, scrollNudge); err != nil {
		l.logger.Warn("failed to scroll page", "error", err)
	}
}
