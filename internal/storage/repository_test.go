package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kmorrow0/edge-alert-bot/internal/models"
)

func testPost(id string) models.Post {
	return models.Post{
		ID:          id,
		Author:      "trader",
		Title:       "Earnings thoughts",
		Description: "Quick take on the quarter",
		Link:        "https://tradingedge.club/posts/" + id,
		Category:    "Market Analysis",
		PostedAt:    time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC),
		Likes:       3,
		Comments:    1,
	}
}

// runRepositoryContractTests exercises the PostRepository contract. Every
// backend must pass the identical body; open returns a fresh, empty
// repository for each subtest.
func runRepositoryContractTests(t *testing.T, open func(t *testing.T) PostRepository) {
	ctx := context.Background()

	t.Run("CreateAndExists", func(t *testing.T) {
		repo := open(t)

		exists, err := repo.Exists(ctx, "p1")
		if err != nil {
			t.Fatalf("Exists() failed: %v", err)
		}
		if exists {
			t.Error("expected post to not exist before create")
		}

		if err := repo.Create(ctx, testPost("p1")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		exists, err = repo.Exists(ctx, "p1")
		if err != nil {
			t.Fatalf("Exists() failed: %v", err)
		}
		if !exists {
			t.Error("expected post to exist after create")
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := open(t)

		if err := repo.Create(ctx, testPost("p1")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if err := repo.Create(ctx, testPost("p1")); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("CreateIgnoresTagState", func(t *testing.T) {
		repo := open(t)

		post := testPost("p1")
		post.ContentTagged = true
		post.WatchlistMatches = []string{"NVDA"}
		post.AllMatches = []string{"NVDA", "AAPL"}
		if err := repo.Create(ctx, post); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		untagged, err := repo.ListUntagged(ctx)
		if err != nil {
			t.Fatalf("ListUntagged() failed: %v", err)
		}
		if len(untagged) != 1 || untagged[0].ID != "p1" {
			t.Errorf("expected freshly created post to be untagged, got %+v", untagged)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := open(t)

		if err := repo.Update(ctx, testPost("missing")); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdatePreservesTagState", func(t *testing.T) {
		repo := open(t)

		if err := repo.Create(ctx, testPost("p1")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if err := repo.MarkTagged(ctx, "p1", []string{"NVDA"}, []string{"AAPL", "NVDA"}); err != nil {
			t.Fatalf("MarkTagged() failed: %v", err)
		}

		updated := testPost("p1")
		updated.Title = "Earnings thoughts, revised"
		updated.Likes = 25
		if err := repo.Update(ctx, updated); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		posts, err := repo.ListFeed(ctx)
		if err != nil {
			t.Fatalf("ListFeed() failed: %v", err)
		}
		if len(posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(posts))
		}
		p := posts[0]
		if p.Title != "Earnings thoughts, revised" || p.Likes != 25 {
			t.Errorf("mutable fields not updated: %+v", p)
		}
		if !p.ContentTagged {
			t.Error("Update must not clear ContentTagged")
		}
		if !reflect.DeepEqual(p.WatchlistMatches, []string{"NVDA"}) {
			t.Errorf("Update must not touch watchlist matches, got %v", p.WatchlistMatches)
		}
		if !reflect.DeepEqual(p.AllMatches, []string{"AAPL", "NVDA"}) {
			t.Errorf("Update must not touch all matches, got %v", p.AllMatches)
		}
	})

	t.Run("UpdatePostedAt", func(t *testing.T) {
		repo := open(t)

		original := testPost("p1")
		if err := repo.Create(ctx, original); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		// Zero PostedAt keeps the stored timestamp.
		updated := testPost("p1")
		updated.PostedAt = time.Time{}
		if err := repo.Update(ctx, updated); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		posts, err := repo.ListFeed(ctx)
		if err != nil {
			t.Fatalf("ListFeed() failed: %v", err)
		}
		if !posts[0].PostedAt.Equal(original.PostedAt) {
			t.Errorf("zero PostedAt clobbered stored value: got %v, want %v", posts[0].PostedAt, original.PostedAt)
		}

		// A real PostedAt overwrites it.
		updated.PostedAt = original.PostedAt.Add(-time.Hour)
		if err := repo.Update(ctx, updated); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		posts, err = repo.ListFeed(ctx)
		if err != nil {
			t.Fatalf("ListFeed() failed: %v", err)
		}
		if !posts[0].PostedAt.Equal(updated.PostedAt) {
			t.Errorf("PostedAt not updated: got %v, want %v", posts[0].PostedAt, updated.PostedAt)
		}
	})

	t.Run("MarkTaggedIdempotent", func(t *testing.T) {
		repo := open(t)

		if err := repo.Create(ctx, testPost("p1")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		if err := repo.MarkTagged(ctx, "p1", nil, []string{"TSLA"}); err != nil {
			t.Fatalf("MarkTagged() failed: %v", err)
		}
		// Same call again succeeds with the same end state.
		if err := repo.MarkTagged(ctx, "p1", nil, []string{"TSLA"}); err != nil {
			t.Fatalf("repeat MarkTagged() failed: %v", err)
		}

		untagged, err := repo.ListUntagged(ctx)
		if err != nil {
			t.Fatalf("ListUntagged() failed: %v", err)
		}
		if len(untagged) != 0 {
			t.Errorf("expected no untagged posts, got %d", len(untagged))
		}

		if err := repo.MarkTagged(ctx, "missing", nil, nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown id, got %v", err)
		}
	})

	t.Run("ListFeedOrdering", func(t *testing.T) {
		repo := open(t)

		base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

		oldest := testPost("a")
		oldest.PostedAt = base.Add(-48 * time.Hour)
		newest := testPost("z")
		newest.PostedAt = base
		tieB := testPost("b")
		tieB.PostedAt = base.Add(-24 * time.Hour)
		tieA := testPost("a2")
		tieA.PostedAt = base.Add(-24 * time.Hour)
		// Sub-second precision must order against whole seconds.
		frac := testPost("f")
		frac.PostedAt = base.Add(-24*time.Hour + 500*time.Millisecond)

		for _, p := range []models.Post{oldest, newest, tieB, tieA, frac} {
			if err := repo.Create(ctx, p); err != nil {
				t.Fatalf("Create(%s) failed: %v", p.ID, err)
			}
		}

		posts, err := repo.ListFeed(ctx)
		if err != nil {
			t.Fatalf("ListFeed() failed: %v", err)
		}
		var got []string
		for _, p := range posts {
			got = append(got, p.ID)
		}
		want := []string{"z", "f", "a2", "b", "a"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("feed order = %v, want %v", got, want)
		}
	})

	t.Run("ListUntaggedProjection", func(t *testing.T) {
		repo := open(t)

		if err := repo.Create(ctx, testPost("p1")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		untagged, err := repo.ListUntagged(ctx)
		if err != nil {
			t.Fatalf("ListUntagged() failed: %v", err)
		}
		if len(untagged) != 1 {
			t.Fatalf("expected 1 untagged post, got %d", len(untagged))
		}
		p := untagged[0]
		if p.ID != "p1" || p.Title == "" || p.Link == "" || p.Description == "" {
			t.Errorf("projection missing fields: %+v", p)
		}
		if p.Author != "" {
			t.Errorf("projection should not include author, got %q", p.Author)
		}
	})
}
