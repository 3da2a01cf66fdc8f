// Package capture implements the browser-side half of the pipeline: the hub
// client, the recurring capture loop, and the action executor that carries
// out delete commands against the live page.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/hub"
)

const reconnectDelay = 5 * time.Second

// ErrNotConnected is returned by SendBatch while the hub channel is down. The
// batch is not buffered; the next scrape tick re-discovers the same posts and
// the hub's idempotent ingest absorbs the repeat.
var ErrNotConnected = errors.New("hub connection not established")

// Client maintains the capture agent's websocket connection to the hub. It
// registers under the CAPTURE role, forwards scraped batches, and dispatches
// inbound delete commands to the given handler.
type Client struct {
	url      string
	onDelete func(ctx context.Context, postID string)
	logger   *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a hub client. onDelete is invoked for every delete
// command the hub broadcasts; it runs on its own goroutine so a slow UI
// interaction never stalls the read loop.
func NewClient(hubURL string, onDelete func(ctx context.Context, postID string), logger *slog.Logger) *Client {
	return &Client{
		url:      hubURL,
		onDelete: onDelete,
		logger:   logger,
	}
}

// Run connects to the hub and processes inbound messages until the context is
// cancelled, reconnecting with a fixed backoff on transient errors.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.session(ctx); err != nil {
				c.logger.Error("hub connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial hub: %w", err)
	}
	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.mu.Lock()
	c.conn = conn
	err = conn.WriteJSON(hub.Envelope{Event: hub.EventRegister, Role: hub.RoleCapture})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register with hub: %w", err)
	}

	c.logger.Info("connected to hub", "url", c.url)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var env hub.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read hub message: %w", err)
		}

		switch env.Event {
		case hub.EventDiscovery:
			c.logger.Info("hub discovery address received", "address", env.Address)
		case hub.EventDeleteCommand:
			c.logger.Info("delete command received", "id", env.PostID)
			if c.onDelete != nil {
				go c.onDelete(ctx, env.PostID)
			}
		default:
			c.logger.Warn("unexpected event from hub", "event", env.Event)
		}
	}
}

// SendBatch forwards scraped records to the hub. Fire-and-forget beyond the
// returned error: no acknowledgment is awaited.
func (c *Client) SendBatch(ctx context.Context, posts []domain.PostRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	if err := c.conn.WriteJSON(hub.Envelope{Event: hub.EventScrapedBatch, Posts: posts}); err != nil {
		// The read loop will notice the broken connection and redial.
		c.conn.Close()
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
