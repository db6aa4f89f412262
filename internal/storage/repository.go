package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
	"github.com/kmorrow0/edge-alert-bot/internal/models"
)

// ErrAlreadyExists is returned by Create when a post with the same ID was
// already created. Callers are expected to check Exists first; hitting this
// error indicates a stale existence check and must not be swallowed.
var ErrAlreadyExists = errors.New("post already exists")

// ErrNotFound is returned by Update and MarkTagged when no post carries the
// given ID.
var ErrNotFound = errors.New("post not found")

// ErrUnsupported is returned by a backend that cannot implement an operation.
// Backends must fail loudly rather than silently no-op.
var ErrUnsupported = errors.New("operation not supported by storage backend")

// PostRepository is the storage contract shared by the harvester, the tagging
// engine, and the dispatcher. All implementations must behave identically for
// the same call sequence; only the transport differs.
type PostRepository interface {
	// Exists reports whether a post with the given ID was previously created.
	Exists(ctx context.Context, id string) (bool, error)

	// Create persists a new post with ContentTagged=false and empty match
	// sets, regardless of what the argument carries. Fails with
	// ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, post models.Post) error

	// Update overwrites the mutable fields only (title, description, likes,
	// comments, posted_at). It never touches ContentTagged or the match
	// sets. Fails with ErrNotFound if the ID does not exist.
	Update(ctx context.Context, post models.Post) error

	// ListFeed returns all posts with current tag state, ordered by
	// posted_at descending, ties broken by ID ascending.
	ListFeed(ctx context.Context) ([]models.Post, error)

	// ListUntagged returns posts with ContentTagged=false, projected down to
	// id, title, link and description.
	ListUntagged(ctx context.Context) ([]models.Post, error)

	// MarkTagged sets ContentTagged=true and both match sets. Idempotent.
	// Fails with ErrNotFound if the ID does not exist.
	MarkTagged(ctx context.Context, id string, watchlistMatches, allMatches []string) error

	Close() error
}

// Open constructs the repository selected by cfg.StorageEngine. Connection
// parameters arrive fully resolved in the config; constructors never prompt.
func Open(ctx context.Context, cfg *config.Config) (PostRepository, error) {
	switch cfg.StorageEngine {
	case config.StorageSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case config.StorageFirestore:
		return NewFirestore(ctx, cfg.FirestoreProjectID)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
	}
}
