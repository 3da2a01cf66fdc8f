package hub

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout    = 10 * time.Second
	pingInterval    = 15 * time.Second
	pingPongTimeout = 10 * time.Second

	// sendBufferSize bounds the per-peer outbound queue. A peer that falls
	// this far behind starts dropping frames; re-ingest on the next scrape
	// tick re-announces anything a review peer missed.
	sendBufferSize = 64
)

// peer is one connected client. Its role is unset until it registers.
type peer struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	role Role

	send chan Envelope
	done chan struct{}
}

func newPeer(id string, conn *websocket.Conn, logger *slog.Logger) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		logger: logger.With("peer", id),
		send:   make(chan Envelope, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue queues an envelope for delivery, dropping it if the peer's buffer
// is full. Delivery is best-effort.
func (p *peer) enqueue(env Envelope) {
	select {
	case p.send <- env:
	default:
		p.logger.Warn("peer send buffer full, dropping message", "event", env.Event)
	}
}

// writePump is the peer's single writer goroutine. gorilla/websocket permits
// one concurrent writer per connection, so every outbound frame goes through
// here. It also keeps the connection alive with pings.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(env); err != nil {
				p.logger.Warn("failed to write to peer", "event", env.Event, "error", err)
				p.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(pingPongTimeout)
			if err := p.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				p.conn.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}
