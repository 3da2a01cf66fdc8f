package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a captured post.
type Status string

const (
	// StatusPending means the post is waiting for a reviewer's decision.
	StatusPending Status = "PENDING"

	// StatusKept means the reviewer chose to keep the post.
	StatusKept Status = "KEPT"

	// StatusDeleted means the reviewer chose to delete the post. The stored
	// record stays around with this status; removing the post from the live
	// page is the capture agent's job.
	StatusDeleted Status = "DELETED"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusKept || s == StatusDeleted
}

// Metrics holds best-effort engagement counts parsed from the source UI.
type Metrics struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// LinkCard summarizes an external link preview attached to a post.
type LinkCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	ImageURL    string `json:"imageUrl"`
}

// PostRecord is the canonical representation of one captured post. It is
// created by the extraction engine, persisted by the relay hub, and referenced
// by id in review decisions and delete commands.
type PostRecord struct {
	// ID is the post's stable external identifier. Records without one are
	// dropped before they ever reach the hub.
	ID string `json:"id"`

	// Content is the plain-text body, or a placeholder for media-only posts.
	Content string `json:"content"`

	// CreatedAt is the origin timestamp, falling back to capture time when
	// the source UI does not expose one.
	CreatedAt time.Time `json:"createdAt"`

	Status Status `json:"status"`

	AuthorName   string `json:"authorName"`
	AuthorHandle string `json:"authorHandle"`
	AvatarURL    string `json:"avatarUrl"`

	Metrics Metrics `json:"metrics"`

	// Media lists asset URLs (images, or poster frames standing in for
	// videos) in DOM order.
	Media []string `json:"media,omitempty"`

	// IsRepost is true when the record represents the viewer resharing
	// someone else's content.
	IsRepost bool `json:"isRepost"`

	LinkCard *LinkCard `json:"linkCard,omitempty"`

	// ThreadParent and ThreadChild are opaque snapshots of the adjacent
	// timeline items, attached for display context only. They are never
	// deduplicated, persisted independently, or targetable by commands.
	ThreadParent json.RawMessage `json:"threadParent,omitempty"`
	ThreadChild  json.RawMessage `json:"threadChild,omitempty"`
}
