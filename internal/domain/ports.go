package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no record matches the given id.
var ErrNotFound = errors.New("post not found")

// PostRepository defines persistence operations for captured posts.
type PostRepository interface {
	// CreatePost inserts a new post into the store.
	CreatePost(ctx context.Context, post *PostRecord) error

	// GetPost retrieves a post by id. Returns ErrNotFound if absent.
	GetPost(ctx context.Context, id string) (*PostRecord, error)

	// TransitionStatus moves the post with the given id out of PENDING into
	// the given terminal status. It reports whether the transition happened;
	// an unknown id or an already-terminal record leaves the store unchanged
	// and reports false without error.
	TransitionStatus(ctx context.Context, id string, to Status) (bool, error)

	// ListByStatus retrieves all posts with the given status, most recent
	// first by origin timestamp.
	ListByStatus(ctx context.Context, status Status) ([]PostRecord, error)

	// DeleteByStatus removes every post with the given status and returns the
	// number of rows deleted. This is the only way records leave the store.
	DeleteByStatus(ctx context.Context, status Status) (int64, error)
}
