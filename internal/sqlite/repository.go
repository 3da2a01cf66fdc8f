package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/tweet-sweep/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id            TEXT PRIMARY KEY,
	content       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	status        TEXT NOT NULL,
	author_name   TEXT NOT NULL,
	author_handle TEXT NOT NULL,
	avatar_url    TEXT NOT NULL,
	likes         INTEGER NOT NULL DEFAULT 0,
	reposts       INTEGER NOT NULL DEFAULT 0,
	replies       INTEGER NOT NULL DEFAULT 0,
	media         TEXT,
	is_repost     INTEGER NOT NULL DEFAULT 0,
	link_card     TEXT,
	thread_parent TEXT,
	thread_child  TEXT
);
CREATE INDEX IF NOT EXISTS idx_posts_status_created ON posts (status, created_at DESC);
`

// Repository implements domain.PostRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if necessary) the SQLite database at the given
// path, applies the schema, and returns a new Repository. The caller should
// call Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes; a single writer connection avoids
	// SQLITE_BUSY under concurrent hub handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreatePost inserts a new post.
func (r *Repository) CreatePost(ctx context.Context, post *domain.PostRecord) error {
	media, err := marshalMedia(post.Media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}
	card, err := marshalCard(post.LinkCard)
	if err != nil {
		return fmt.Errorf("encode link card: %w", err)
	}

	query := `
		INSERT INTO posts (
			id, content, created_at, status,
			author_name, author_handle, avatar_url,
			likes, reposts, replies,
			media, is_repost, link_card, thread_parent, thread_child
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		post.ID,
		post.Content,
		post.CreatedAt.UTC(),
		string(post.Status),
		post.AuthorName,
		post.AuthorHandle,
		post.AvatarURL,
		post.Metrics.Likes,
		post.Metrics.Reposts,
		post.Metrics.Replies,
		media,
		post.IsRepost,
		card,
		nullableRaw(post.ThreadParent),
		nullableRaw(post.ThreadChild),
	)
	return err
}

// GetPost retrieves a post by id.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.PostRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` FROM posts WHERE id = ?`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return post, nil
}

// TransitionStatus moves a PENDING post into the given terminal status. The
// status guard in the WHERE clause is what enforces terminal immutability.
func (r *Repository) TransitionStatus(ctx context.Context, id string, to domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(domain.StatusPending),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByStatus retrieves posts with the given status, most recent first.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.PostRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` FROM posts WHERE status = ? ORDER BY created_at DESC, id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query posts by status: %w", err)
	}
	defer rows.Close()

	var posts []domain.PostRecord
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// DeleteByStatus removes every post with the given status. The status filter
// keeps this a scoped delete; terminal records survive a pending purge.
func (r *Repository) DeleteByStatus(ctx context.Context, status domain.Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE status = ?`, string(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectColumns = `
	SELECT id, content, created_at, status,
	       author_name, author_handle, avatar_url,
	       likes, reposts, replies,
	       media, is_repost, link_card, thread_parent, thread_child`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.PostRecord, error) {
	var (
		p            domain.PostRecord
		createdAt    time.Time
		status       string
		media        sql.NullString
		card         sql.NullString
		threadParent sql.NullString
		threadChild  sql.NullString
	)

	err := row.Scan(
		&p.ID,
		&p.Content,
		&createdAt,
		&status,
		&p.AuthorName,
		&p.AuthorHandle,
		&p.AvatarURL,
		&p.Metrics.Likes,
		&p.Metrics.Reposts,
		&p.Metrics.Replies,
		&media,
		&p.IsRepost,
		&card,
		&threadParent,
		&threadChild,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = createdAt
	p.Status = domain.Status(status)

	if media.Valid && media.String != "" {
		if err := json.Unmarshal([]byte(media.String), &p.Media); err != nil {
			return nil, fmt.Errorf("decode media: %w", err)
		}
	}
	if card.Valid && card.String != "" {
		p.LinkCard = &domain.LinkCard{}
		if err := json.Unmarshal([]byte(card.String), p.LinkCard); err != nil {
			return nil, fmt.Errorf("decode link card: %w", err)
		}
	}
	if threadParent.Valid && threadParent.String != "" {
		p.ThreadParent = json.RawMessage(threadParent.String)
	}
	if threadChild.Valid && threadChild.String != "" {
		p.ThreadChild = json.RawMessage(threadChild.String)
	}

	return &p, nil
}

func marshalMedia(media []string) (sql.NullString, error) {
	if len(media) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(media)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func marshalCard(card *domain.LinkCard) (sql.NullString, error) {
	if card == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(card)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullableRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
