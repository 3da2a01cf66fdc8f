package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// TriageService is the core domain service. It owns the post lifecycle state
// machine: ingesting scraped batches, applying reviewer decisions, and
// resetting the pending backlog. All hub message handlers funnel through it.
type TriageService struct {
	repo   PostRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewTriageService creates a TriageService backed by the given repository.
func NewTriageService(repo PostRepository, logger *slog.Logger) *TriageService {
	return &TriageService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// IngestBatch processes one scraped batch from a capture agent and returns the
// subset of records to forward to review peers, preserving batch order.
//
// A record with an unseen id is stored as PENDING and forwarded. A record
// whose id is already stored and still PENDING is forwarded again without
// touching the store (the capture agent re-scrapes the same timeline every
// tick, so re-announcement is the norm). A record whose id reached a terminal
// status is dropped: a later scrape never reopens a decision. Storage errors
// skip the affected record and leave the rest of the batch intact.
func (s *TriageService) IngestBatch(ctx context.Context, records []PostRecord) []PostRecord {
	var forward []PostRecord

	for _, rec := range records {
		if rec.ID == "" {
			continue
		}

		existing, err := s.repo.GetPost(ctx, rec.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			rec.Status = StatusPending
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = s.now().UTC()
			}
			if err := s.repo.CreatePost(ctx, &rec); err != nil {
				s.logger.Error("failed to store scraped post", "id", rec.ID, "error", err)
				continue
			}
			forward = append(forward, rec)

		case err != nil:
			s.logger.Error("failed to look up scraped post", "id", rec.ID, "error", err)

		case existing.Status == StatusPending:
			forward = append(forward, rec)

		default:
			// Terminal record re-scraped; drop silently.
		}
	}

	return forward
}

// Decide applies a reviewer decision, transitioning the record out of PENDING
// into the given terminal status. It reports whether the transition happened.
// Deciding on an unknown or already-terminal id is a no-op, not an error.
func (s *TriageService) Decide(ctx context.Context, id string, to Status) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("invalid decision status %q", to)
	}

	moved, err := s.repo.TransitionStatus(ctx, id, to)
	if err != nil {
		return false, fmt.Errorf("transition post %s to %s: %w", id, to, err)
	}
	return moved, nil
}

// PendingBacklog returns every PENDING record, most recent first. Used to
// replay the backlog to a late-joining review peer.
func (s *TriageService) PendingBacklog(ctx context.Context) ([]PostRecord, error) {
	posts, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending posts: %w", err)
	}
	return posts, nil
}

// Reset purges all PENDING records. Terminal records are untouched. Returns
// the number of records removed.
func (s *TriageService) Reset(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteByStatus(ctx, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("purge pending posts: %w", err)
	}
	return deleted, nil
}
