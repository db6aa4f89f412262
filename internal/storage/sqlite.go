package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kmorrow0/edge-alert-bot/internal/models"
)

// SQLiteRepository is the embedded backend. It keeps everything in a single
// local database file; the driver is pure Go so no system sqlite is needed.
type SQLiteRepository struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id                TEXT PRIMARY KEY,
	author            TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	link              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	posted_at         TEXT NOT NULL,
	likes             INTEGER NOT NULL DEFAULT 0,
	comments          INTEGER NOT NULL DEFAULT 0,
	content_tagged    INTEGER NOT NULL DEFAULT 0,
	watchlist_matches TEXT NOT NULL DEFAULT '',
	all_matches       TEXT NOT NULL DEFAULT '',
	last_updated      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_untagged ON posts (content_tagged);
`

// NewSQLite opens (or creates) the database file and ensures the schema.
func NewSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps per-post writes atomic without busy retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create posts schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query post existence: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, post models.Post) error {
	exists, err := r.Exists(ctx, post.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create post %s: %w", post.ID, ErrAlreadyExists)
	}

	postedAt := post.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (id, author, title, description, link, category, posted_at,
		                   likes, comments, content_tagged, watchlist_matches, all_matches, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', '', ?)`,
		post.ID, post.Author, post.Title, post.Description, post.Link, post.Category,
		encodeTime(postedAt), post.Likes, post.Comments, encodeTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", post.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, post models.Post) error {
	// A zero PostedAt means no tooltip was rendered; keep the stored
	// first-seen time in that case.
	var (
		res sql.Result
		err error
	)
	if post.PostedAt.IsZero() {
		res, err = r.db.ExecContext(ctx, `
			UPDATE posts
			SET title = ?, description = ?, likes = ?, comments = ?, last_updated = ?
			WHERE id = ?`,
			post.Title, post.Description, post.Likes, post.Comments,
			encodeTime(time.Now().UTC()), post.ID,
		)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE posts
			SET title = ?, description = ?, likes = ?, comments = ?, posted_at = ?, last_updated = ?
			WHERE id = ?`,
			post.Title, post.Description, post.Likes, post.Comments,
			encodeTime(post.PostedAt), encodeTime(time.Now().UTC()), post.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("update post %s: %w", post.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post %s: rows affected: %w", post.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update post %s: %w", post.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListFeed(ctx context.Context) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, author, title, description, link, category, posted_at,
		       likes, comments, content_tagged, watchlist_matches, all_matches, last_updated
		FROM posts
		ORDER BY posted_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var (
			p                     models.Post
			postedAt, lastUpdated string
			tagged                int
			watchlistCSV, allCSV  string
		)
		if err := rows.Scan(&p.ID, &p.Author, &p.Title, &p.Description, &p.Link, &p.Category,
			&postedAt, &p.Likes, &p.Comments, &tagged, &watchlistCSV, &allCSV, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.PostedAt = decodeTime(postedAt)
		p.LastUpdated = decodeTime(lastUpdated)
		p.ContentTagged = tagged != 0
		p.WatchlistMatches = decodeTickers(watchlistCSV)
		p.AllMatches = decodeTickers(allCSV)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed: %w", err)
	}
	return posts, nil
}

func (r *SQLiteRepository) ListUntagged(ctx context.Context) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, link, description
		FROM posts
		WHERE content_tagged = 0
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query untagged posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Link, &p.Description); err != nil {
			return nil, fmt.Errorf("scan untagged post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate untagged posts: %w", err)
	}
	return posts, nil
}

func (r *SQLiteRepository) MarkTagged(ctx context.Context, id string, watchlistMatches, allMatches []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET content_tagged = 1, watchlist_matches = ?, all_matches = ?, last_updated = ?
		WHERE id = ?`,
		encodeTickers(watchlistMatches), encodeTickers(allMatches),
		encodeTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("mark post %s tagged: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark post %s tagged: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark post %s tagged: %w", id, ErrNotFound)
	}
	return nil
}

// sqliteTimeLayout is fixed-width so lexical order in the ORDER BY matches
// chronological order. RFC3339Nano would not work here: it trims trailing
// fractional zeros, and a whole-second string then compares against a
// fractional one at '.' vs 'Z'.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func encodeTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func decodeTime(s string) time.Time {
	// RFC3339Nano parses the fixed-width layout and also any rows written
	// before it was adopted.
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTickers(tickers []string) string {
	return strings.Join(models.NormalizeTickers(tickers), ",")
}

func decodeTickers(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}
