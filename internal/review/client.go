// Package review implements the review-side hub client: it receives the
// pending backlog and new-post pushes, deduplicates them by id, and sends
// keep/delete decisions back. The swipe UI itself lives elsewhere; callers
// plug in through the OnPosts/OnReset hooks or poll Pending.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blackmichael/tweet-sweep/internal/domain"
	"github.com/blackmichael/tweet-sweep/internal/hub"
)

const (
	reconnectDelay = 5 * time.Second

	// seenCacheSize bounds the id-dedup cache. The hub re-announces pending
	// posts on every scrape tick, so the cache only has to remember roughly
	// one backlog's worth of ids.
	seenCacheSize = 4096
)

// Client is a review peer. Safe for concurrent use.
type Client struct {
	url    string
	logger *slog.Logger

	// OnPosts is invoked with each batch of not-yet-seen posts, after they
	// have been appended to the local queue.
	OnPosts func([]domain.PostRecord)

	// OnReset is invoked after a hub reset clears the local queue.
	OnReset func()

	seen *lru.Cache[string, struct{}]

	mu    sync.Mutex
	conn  *websocket.Conn
	queue []domain.PostRecord
}

// NewClient creates a review client for the given hub websocket URL.
func NewClient(hubURL string, logger *slog.Logger) (*Client, error) {
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Client{
		url:    hubURL,
		logger: logger,
		seen:   seen,
	}, nil
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
	err = conn.WriteJSON(hub.Envelope{Event: hub.EventRegister, Role: hub.RoleReview})
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
		case hub.EventNewPosts:
			c.ingest(env.Posts)
		case hub.EventResetUI:
			c.reset()
		default:
			c.logger.Warn("unexpected event from hub", "event", env.Event)
		}
	}
}

// ingest appends posts not seen before to the local queue. The hub re-sends
// still-pending posts freely (late-join backlog plus re-scrape announcements),
// so the same id may arrive many times; it is queued once.
func (c *Client) ingest(posts []domain.PostRecord) {
	var fresh []domain.PostRecord
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		if _, dup := c.seen.Get(p.ID); dup {
			continue
		}
		c.seen.Add(p.ID, struct{}{})
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return
	}

	c.mu.Lock()
	c.queue = append(c.queue, fresh...)
	c.mu.Unlock()

	c.logger.Info("queued posts for review", "count", len(fresh))
	if c.OnPosts != nil {
		c.OnPosts(fresh)
	}
}

func (c *Client) reset() {
	c.seen.Purge()
	c.mu.Lock()
	c.queue = nil
	c.mu.Unlock()

	c.logger.Info("review queue cleared by hub reset")
	if c.OnReset != nil {
		c.OnReset()
	}
}

// Pending returns a copy of the current review queue.
func (c *Client) Pending() []domain.PostRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PostRecord, len(c.queue))
	copy(out, c.queue)
	return out
}

// Keep sends a keep decision for the given post id and drops it from the
// local queue.
func (c *Client) Keep(id string) error {
	return c.decide(hub.EventDecideKeep, id)
}

// Delete sends a delete decision for the given post id and drops it from the
// local queue.
func (c *Client) Delete(id string) error {
	return c.decide(hub.EventDecideDelete, id)
}

// Reset asks the hub to purge all pending posts everywhere.
func (c *Client) Reset() error {
	return c.send(hub.Envelope{Event: hub.EventReset})
}

func (c *Client) decide(event hub.Event, id string) error {
	if err := c.send(hub.Envelope{Event: event, PostID: id}); err != nil {
		return err
	}

	c.mu.Lock()
	for i, p := range c.queue {
		if p.ID == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) send(env hub.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("hub connection not established")
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(env); err != nil {
		c.conn.Close()
		return fmt.Errorf("send %s: %w", env.Event, err)
	}
	return nil
}
