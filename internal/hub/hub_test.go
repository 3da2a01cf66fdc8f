package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/tweet-sweep/internal/domain"
)

// memRepo is an in-memory domain.PostRepository for hub tests. Hub connection
// goroutines and the test goroutine both touch it, hence the lock.
type memRepo struct {
	mu    sync.Mutex
	posts map[string]*domain.PostRecord
	order []string
}

func newMemRepo() *memRepo {
	return &memRepo{posts: make(map[string]*domain.PostRecord)}
}

func (r *memRepo) CreatePost(_ context.Context, post *domain.PostRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	r.order = append(r.order, post.ID)
	return nil
}

func (r *memRepo) GetPost(_ context.Context, id string) (*domain.PostRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) TransitionStatus(_ context.Context, id string, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (r *memRepo) ListByStatus(_ context.Context, status domain.Status) ([]domain.PostRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PostRecord
	for i := len(r.order) - 1; i >= 0; i-- {
		if p, ok := r.posts[r.order[i]]; ok && p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteByStatus(_ context.Context, status domain.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.posts {
		if p.Status == status {
			delete(r.posts, id)
			n++
		}
	}
	return n, nil
}

type hubFixture struct {
	repo *memRepo
	svc  *domain.TriageService
	hub  *Hub
	url  string
}

func startHub(t *testing.T) *hubFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemRepo()
	svc := domain.NewTriageService(repo, logger)
	h := New(svc, "http://192.0.2.1:3000", logger)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	return &hubFixture{
		repo: repo,
		svc:  svc,
		hub:  h,
		url:  "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func dialPeer(t *testing.T, f *hubFixture, role Role) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(Envelope{Event: EventRegister, Role: role}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return conn
}

// readEvent reads frames until one with the wanted event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, want Event) Envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if env.Event == want {
			return env
		}
	}
}

// expectSilence asserts no frame with the given event arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn, event Event, window time.Duration) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(window))
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return // deadline hit: silence, as expected
		}
		if env.Event == event {
			t.Fatalf("received unexpected %s: %+v", event, env)
		}
	}
}

func TestCaptureRegistrationPushesDiscovery(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)

	env := readEvent(t, capture, EventDiscovery)
	if env.Address != "http://192.0.2.1:3000" {
		t.Errorf("discovery address = %q", env.Address)
	}
}

func TestScrapedBatchFansOutToReview(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)
	review := dialPeer(t, f, RoleReview)

	batch := Envelope{Event: EventScrapedBatch, Posts: []domain.PostRecord{
		{ID: "1", Content: "first"},
		{ID: "2", Content: "second"},
	}}
	if err := capture.WriteJSON(batch); err != nil {
		t.Fatal(err)
	}

	env := readEvent(t, review, EventNewPosts)
	if len(env.Posts) != 2 {
		t.Fatalf("review received %d posts, want 2", len(env.Posts))
	}
	if env.Posts[0].ID != "1" || env.Posts[1].ID != "2" {
		t.Errorf("batch order not preserved: %s, %s", env.Posts[0].ID, env.Posts[1].ID)
	}

	// The capture peer must never see the review-bound fan-out.
	expectSilence(t, capture, EventNewPosts, 200*time.Millisecond)
}

func TestLateReviewPeerReceivesPendingBacklog(t *testing.T) {
	f := startHub(t)
	ctx := context.Background()

	f.svc.IngestBatch(ctx, []domain.PostRecord{{ID: "old"}, {ID: "new"}})
	if _, err := f.svc.Decide(ctx, "old", domain.StatusKept); err != nil {
		t.Fatal(err)
	}

	review := dialPeer(t, f, RoleReview)
	env := readEvent(t, review, EventNewPosts)

	if len(env.Posts) != 1 {
		t.Fatalf("backlog carried %d posts, want only the pending one", len(env.Posts))
	}
	if env.Posts[0].ID != "new" {
		t.Errorf("backlog post = %s, want new", env.Posts[0].ID)
	}
}

func TestDeleteDecisionFansOutCommandToCapture(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)
	review := dialPeer(t, f, RoleReview)

	f.svc.IngestBatch(context.Background(), []domain.PostRecord{{ID: "123"}})

	if err := review.WriteJSON(Envelope{Event: EventDecideDelete, PostID: "123"}); err != nil {
		t.Fatal(err)
	}

	env := readEvent(t, capture, EventDeleteCommand)
	if env.PostID != "123" {
		t.Errorf("delete command id = %q, want 123", env.PostID)
	}

	post, err := f.repo.GetPost(context.Background(), "123")
	if err != nil {
		t.Fatal(err)
	}
	if post.Status != domain.StatusDeleted {
		t.Errorf("status = %s, want DELETED", post.Status)
	}
}

func TestKeepDecisionSendsNoCommand(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)
	review := dialPeer(t, f, RoleReview)

	f.svc.IngestBatch(context.Background(), []domain.PostRecord{{ID: "55"}})

	if err := review.WriteJSON(Envelope{Event: EventDecideKeep, PostID: "55"}); err != nil {
		t.Fatal(err)
	}

	expectSilence(t, capture, EventDeleteCommand, 300*time.Millisecond)

	post, err := f.repo.GetPost(context.Background(), "55")
	if err != nil {
		t.Fatal(err)
	}
	if post.Status != domain.StatusKept {
		t.Errorf("status = %s, want KEPT", post.Status)
	}
}

func TestDecisionOnUnknownIDIsSilentNoOp(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)
	review := dialPeer(t, f, RoleReview)

	if err := review.WriteJSON(Envelope{Event: EventDecideDelete, PostID: "never-seen"}); err != nil {
		t.Fatal(err)
	}

	expectSilence(t, capture, EventDeleteCommand, 300*time.Millisecond)
}

func TestResetPurgesPendingAndNotifiesReview(t *testing.T) {
	f := startHub(t)
	review := dialPeer(t, f, RoleReview)
	ctx := context.Background()

	f.svc.IngestBatch(ctx, []domain.PostRecord{{ID: "A"}, {ID: "B"}})
	if _, err := f.svc.Decide(ctx, "B", domain.StatusKept); err != nil {
		t.Fatal(err)
	}

	if err := review.WriteJSON(Envelope{Event: EventReset}); err != nil {
		t.Fatal(err)
	}

	readEvent(t, review, EventResetUI)

	if _, err := f.repo.GetPost(ctx, "A"); err == nil {
		t.Error("pending record A survived the reset")
	}
	if post, err := f.repo.GetPost(ctx, "B"); err != nil || post.Status != domain.StatusKept {
		t.Error("kept record B was touched by the reset")
	}
}

func TestTerminalRecordNotReforwardedOnReingest(t *testing.T) {
	f := startHub(t)
	capture := dialPeer(t, f, RoleCapture)
	review := dialPeer(t, f, RoleReview)

	f.svc.IngestBatch(context.Background(), []domain.PostRecord{{ID: "9"}})
	if _, err := f.svc.Decide(context.Background(), "9", domain.StatusDeleted); err != nil {
		t.Fatal(err)
	}

	if err := capture.WriteJSON(Envelope{Event: EventScrapedBatch, Posts: []domain.PostRecord{{ID: "9"}}}); err != nil {
		t.Fatal(err)
	}

	expectSilence(t, review, EventNewPosts, 300*time.Millisecond)
}
