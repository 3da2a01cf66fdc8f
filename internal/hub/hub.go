// Package hub implements the relay between capture agents and review clients.
// Peers connect over a websocket, declare a role, and the hub bridges scraped
// posts toward review peers and delete commands back toward capture peers,
// with all lifecycle state owned by the domain service.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/tweet-sweep/internal/domain"
)

// Hub multiplexes capture and review peers over a shared websocket endpoint.
// Peers are grouped by declared role so every broadcast is addressed to one
// role, never to the flat connection list.
type Hub struct {
	svc     *domain.TriageService
	address string
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[Role]map[*peer]struct{}
}

// New creates a Hub. address is the reachable address pushed to capture peers
// on registration (see EventDiscovery).
func New(svc *domain.TriageService, address string, logger *slog.Logger) *Hub {
	return &Hub{
		svc:     svc,
		address: address,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  10 << 10,
			WriteBufferSize: 10 << 10,
			// Peers live on the LAN; the capture agent connects from a
			// browser extension origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: map[Role]map[*peer]struct{}{
			RoleCapture: {},
			RoleReview:  {},
		},
	}
}

// HandleWS upgrades the request to a websocket and serves the peer until it
// disconnects. One goroutine reads and dispatches; the peer's writePump is
// the sole writer.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	p := newPeer(uuid.NewString(), conn, h.logger)
	p.logger.Info("peer connected", "remote", conn.RemoteAddr().String())

	go p.writePump()
	defer func() {
		h.removePeer(p)
		close(p.done)
		conn.Close()
		p.logger.Info("peer disconnected", "role", p.role)
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn("peer read error", "error", err)
			}
			return
		}
		h.dispatch(r.Context(), p, env)
	}
}

func (h *Hub) dispatch(ctx context.Context, p *peer, env Envelope) {
	switch env.Event {
	case EventRegister:
		h.handleRegister(ctx, p, env.Role)
	case EventScrapedBatch:
		h.handleScrapedBatch(ctx, p, env.Posts)
	case EventDecideDelete:
		h.handleDecision(ctx, p, env.PostID, domain.StatusDeleted)
	case EventDecideKeep:
		h.handleDecision(ctx, p, env.PostID, domain.StatusKept)
	case EventReset:
		h.handleReset(ctx, p)
	default:
		p.logger.Warn("unknown event from peer", "event", env.Event)
	}
}

// handleRegister joins the peer to its role group. Capture peers get the
// discovery address pushed once; review peers get the full pending backlog so
// a late joiner still sees everything awaiting a decision.
func (h *Hub) handleRegister(ctx context.Context, p *peer, role Role) {
	if role != RoleCapture && role != RoleReview {
		p.logger.Warn("peer registered with unknown role", "role", role)
		return
	}

	h.mu.Lock()
	if p.role != "" {
		delete(h.peers[p.role], p)
	}
	p.role = role
	h.peers[role][p] = struct{}{}
	h.mu.Unlock()

	p.logger.Info("peer registered", "role", role)

	switch role {
	case RoleCapture:
		p.enqueue(Envelope{Event: EventDiscovery, Address: h.address})
	case RoleReview:
		backlog, err := h.svc.PendingBacklog(ctx)
		if err != nil {
			p.logger.Error("failed to load pending backlog", "error", err)
			return
		}
		if len(backlog) > 0 {
			p.enqueue(Envelope{Event: EventNewPosts, Posts: backlog})
		}
	}
}

func (h *Hub) handleScrapedBatch(ctx context.Context, p *peer, posts []domain.PostRecord) {
	p.logger.Info("received scraped batch", "count", len(posts))

	forward := h.svc.IngestBatch(ctx, posts)
	if len(forward) == 0 {
		return
	}

	h.broadcast(RoleReview, Envelope{Event: EventNewPosts, Posts: forward})
}

// handleDecision applies a reviewer decision. A delete that actually
// transitioned the record fans a delete command out to all capture peers; a
// decision on an unknown or already-decided post is a no-op.
func (h *Hub) handleDecision(ctx context.Context, p *peer, postID string, to domain.Status) {
	p.logger.Info("received decision", "id", postID, "status", to)

	moved, err := h.svc.Decide(ctx, postID, to)
	if err != nil {
		p.logger.Error("failed to apply decision", "id", postID, "status", to, "error", err)
		return
	}
	if !moved {
		p.logger.Info("decision ignored, post unknown or already decided", "id", postID)
		return
	}

	if to == domain.StatusDeleted {
		h.broadcast(RoleCapture, Envelope{Event: EventDeleteCommand, PostID: postID})
	}
}

func (h *Hub) handleReset(ctx context.Context, p *peer) {
	deleted, err := h.svc.Reset(ctx)
	if err != nil {
		p.logger.Error("failed to reset pending posts", "error", err)
		return
	}
	p.logger.Info("pending posts cleared", "deleted", deleted)

	h.broadcast(RoleReview, Envelope{Event: EventResetUI})
}

// broadcast enqueues env for every peer registered under role.
func (h *Hub) broadcast(role Role, env Envelope) {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.peers[role]))
	for p := range h.peers[role] {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.enqueue(env)
	}
}

func (h *Hub) removePeer(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.role != "" {
		delete(h.peers[p.role], p)
	}
}
