package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertSource inserts a source or, if it already exists, updates its
// configured fields and clears its operational state (failure count, paused
// flag). Re-registering is how an operator revives a paused source on reload.
func (s *SQLite) UpsertSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, kind, tier, name, address, interval_minutes, failure_count, paused, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   tier = excluded.tier,
		   name = excluded.name,
		   interval_minutes = excluded.interval_minutes,
		   failure_count = 0,
		   paused = 0`,
		src.ID, string(src.Kind), src.Tier, src.Name, src.Address, src.IntervalMinutes, now,
	)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	src.FailureCount = 0
	src.Paused = false
	return nil
}

// GetSource returns a single source by its ID.
func (s *SQLite) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, tier, name, address, interval_minutes, failure_count, paused, last_check_at, created_at
		 FROM sources WHERE id = ?`, id,
	)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// ListSources returns all registered sources ordered by kind, tier, name.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, tier, name, address, interval_minutes, failure_count, paused, last_check_at, created_at
		 FROM sources ORDER BY kind, tier, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSource persists the mutable state of an existing source.
func (s *SQLite) UpdateSource(ctx context.Context, src *model.Source) error {
	var lastCheck *string
	if src.LastCheckAt != nil {
		v := src.LastCheckAt.UTC().Format(timeLayout)
		lastCheck = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET failure_count = ?, paused = ?, last_check_at = ? WHERE id = ?`,
		src.FailureCount, boolToInt(src.Paused), lastCheck, src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// InsertPost inserts a post and its search-index row in one transaction.
// The UNIQUE (source_id, external_id) constraint is the dedup source of
// truth: a conflicting insert affects zero rows and reports isNew=false.
func (s *SQLite) InsertPost(ctx context.Context, post *model.Post) (bool, error) {
	meta, err := json.Marshal(post.Meta)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts (id, source_id, external_id, kind, title, summary, url, published_at, fetched_at, status, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_id, external_id) DO NOTHING`,
		post.ID, post.SourceID, post.ExternalID, string(post.Kind), post.Title, post.Summary, post.URL,
		post.PublishedAt.UTC().Format(timeLayout), post.FetchedAt.UTC().Format(timeLayout),
		string(post.Status), string(meta),
	)
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO posts_fts (title, hashtags, post_id) VALUES (?, ?, ?)`,
		post.Title, strings.Join(post.Meta.Hashtags, " "), post.ID,
	); err != nil {
		return false, fmt.Errorf("index post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// GetPost returns a single post with its media references.
func (s *SQLite) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, selectPosts+` WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	media, err := s.ListMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Media = media
	return post, nil
}

// UpdatePostStatus sets the status of a post. Posts never return to
// pending, so only the three triage outcomes are accepted.
func (s *SQLite) UpdatePostStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not a triage outcome", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPostsByStatus returns a page of posts with the given status, newest
// first. Ordering is by (fetched_at, id) so equal timestamps have a stable
// order; offset pages partition the set only while it is unchanged.
func (s *SQLite) ListPostsByStatus(ctx context.Context, status model.Status, limit, offset int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPosts+` WHERE status = ? ORDER BY fetched_at DESC, id DESC LIMIT ? OFFSET ?`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanPosts(rows)
}

// SearchPosts runs a keyword query against the full-text index, excluding
// erased posts, ranked by relevance with recency breaking ties.
func (s *SQLite) SearchPosts(ctx context.Context, query string, limit int) ([]model.Post, error) {
	match := buildMatch(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.source_id, p.external_id, p.kind, p.title, p.summary, p.url, p.published_at, p.fetched_at, p.status, p.metadata
		 FROM posts_fts
		 JOIN posts p ON p.id = posts_fts.post_id
		 WHERE posts_fts MATCH ? AND p.status != ?
		 ORDER BY posts_fts.rank, p.published_at DESC, p.id DESC
		 LIMIT ?`,
		match, string(model.StatusErased), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanPosts(rows)
}

// CountPostsByStatus returns post counts grouped by status, computed
// directly from the posts table.
func (s *SQLite) CountPostsByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// AddMedia records media references for a post.
func (s *SQLite) AddMedia(ctx context.Context, media []model.Media) error {
	for _, m := range media {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO media (post_id, position, local_path, source_url) VALUES (?, ?, ?, ?)`,
			m.PostID, m.Position, m.LocalPath, m.SourceURL,
		)
		if err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
	}
	return nil
}

// ListMedia returns a post's media references in position order.
func (s *SQLite) ListMedia(ctx context.Context, postID string) ([]model.Media, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id, position, local_path, source_url FROM media WHERE post_id = ? ORDER BY position`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var media []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.PostID, &m.Position, &m.LocalPath, &m.SourceURL); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

const selectPosts = `SELECT id, source_id, external_id, kind, title, summary, url, published_at, fetched_at, status, metadata FROM posts`

// buildMatch turns free-form user keywords into an FTS5 MATCH expression.
// Each token is quoted so user input cannot inject query syntax.
func buildMatch(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var kind string
	var paused int
	var lastCheck, created sql.NullString
	err := row.Scan(&src.ID, &kind, &src.Tier, &src.Name, &src.Address,
		&src.IntervalMinutes, &src.FailureCount, &paused, &lastCheck, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.Kind = model.SourceKind(kind)
	src.Paused = paused == 1
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		src.LastCheckAt = &t
	}
	if created.Valid {
		src.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &src, nil
}

func scanPost(row scannable) (*model.Post, error) {
	var p model.Post
	var kind, status, published, fetched, meta string
	err := row.Scan(&p.ID, &p.SourceID, &p.ExternalID, &kind, &p.Title, &p.Summary, &p.URL, &published, &fetched, &status, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.Kind = model.SourceKind(kind)
	p.Status, err = model.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.PublishedAt, _ = time.Parse(timeLayout, published)
	p.FetchedAt, _ = time.Parse(timeLayout, fetched)
	if err := json.Unmarshal([]byte(meta), &p.Meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}
