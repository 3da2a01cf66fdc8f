package hub

import "github.com/blackmichael/tweet-sweep/internal/domain"

// Role identifies which logical group a peer belongs to.
type Role string

const (
	// RoleCapture is the browser-side agent that scrapes posts and executes
	// delete commands.
	RoleCapture Role = "CAPTURE"

	// RoleReview is the client that shows pending posts to a human and sends
	// back keep/delete decisions.
	RoleReview Role = "REVIEW"
)

// Event names the message kinds exchanged over the hub channel.
type Event string

const (
	// EventRegister declares the sending peer's role (capture/review → hub).
	EventRegister Event = "register"

	// EventDiscovery carries a reachable hub address to a newly registered
	// capture peer, a one-shot connection-scoped push (hub → capture).
	EventDiscovery Event = "discovery"

	// EventScrapedBatch carries freshly extracted posts (capture → hub).
	EventScrapedBatch Event = "scraped_batch"

	// EventNewPosts carries posts to append to the review queue (hub → review).
	EventNewPosts Event = "new_posts"

	// EventDecideDelete requests a delete decision for one post (review → hub).
	EventDecideDelete Event = "decide_delete"

	// EventDecideKeep requests a keep decision for one post (review → hub).
	EventDecideKeep Event = "decide_keep"

	// EventDeleteCommand tells capture peers to delete one post (hub → capture).
	EventDeleteCommand Event = "delete_command"

	// EventReset asks the hub to purge all pending posts (review → hub).
	EventReset Event = "reset"

	// EventResetUI tells review peers to clear their local queue (hub → review).
	EventResetUI Event = "reset_ui"
)

// Envelope is the single wire frame for all hub traffic. Only the fields
// relevant to the event are set.
type Envelope struct {
	Event   Event               `json:"event"`
	Role    Role                `json:"role,omitempty"`
	PostID  string              `json:"postId,omitempty"`
	Address string              `json:"address,omitempty"`
	Posts   []domain.PostRecord `json:"posts,omitempty"`
}
