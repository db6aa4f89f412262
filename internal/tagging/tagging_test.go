package tagging

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kmorrow0/edge-alert-bot/internal/models"
	"github.com/kmorrow0/edge-alert-bot/internal/settings"
	"github.com/kmorrow0/edge-alert-bot/internal/storage"
)

type taggedCall struct {
	id               string
	watchlistMatches []string
	allMatches       []string
}

// mockRepo implements storage.PostRepository for tagging tests.
type mockRepo struct {
	untagged      []models.Post
	tagged        []taggedCall
	markTaggedErr error
}

func (m *mockRepo) Exists(ctx context.Context, id string) (bool, error) { return false, nil }
func (m *mockRepo) Create(ctx context.Context, post models.Post) error { return nil }
func (m *mockRepo) Update(ctx context.Context, post models.Post) error { return nil }
func (m *mockRepo) ListFeed(ctx context.Context) ([]models.Post, error) { return nil, nil }
func (m *mockRepo) Close() error { return nil }

func (m *mockRepo) ListUntagged(ctx context.Context) ([]models.Post, error) {
	return m.untagged, nil
}

func (m *mockRepo) MarkTagged(ctx context.Context, id string, watchlistMatches, allMatches []string) error {
	if m.markTaggedErr != nil {
		return m.markTaggedErr
	}
	m.tagged = append(m.tagged, taggedCall{id: id, watchlistMatches: watchlistMatches, allMatches: allMatches})
	return nil
}

func testEngine() *Engine {
	return NewEngine(settings.Settings{
		Universe:  []string{"AAPL", "ARM", "F", "NVDA", "TSLA"},
		Watchlist: []string{"NVDA"},
	})
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantAll       []string
		wantWatchlist []string
	}{
		{
			name:          "watchlist and universe hit",
			text:          "NVDA crushed earnings, AAPL flat",
			wantAll:       []string{"AAPL", "NVDA"},
			wantWatchlist: []string{"NVDA"},
		},
		{
			name:          "universe only",
			text:          "TSLA deliveries beat",
			wantAll:       []string{"TSLA"},
			wantWatchlist: nil,
		},
		{
			name:          "lowercase does not match",
			text:          "nvda looks strong",
			wantAll:       nil,
			wantWatchlist: nil,
		},
		{
			name:          "uppercase word outside universe ignored",
			text:          "BREAKING: CEO resigns",
			wantAll:       nil,
			wantWatchlist: nil,
		},
		{
			name:          "deduplicated and sorted",
			text:          "NVDA NVDA AAPL NVDA",
			wantAll:       []string{"AAPL", "NVDA"},
			wantWatchlist: []string{"NVDA"},
		},
		{
			name:          "short ticker on word boundary",
			text:          "F is cheap here",
			wantAll:       []string{"F"},
			wantWatchlist: nil,
		},
		{
			name:          "ticker embedded in longer word ignored",
			text:          "FARMING stocks rally",
			wantAll:       nil,
			wantWatchlist: nil,
		},
	}

	e := testEngine()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			all, watchlist := e.Extract(tc.text)
			if !reflect.DeepEqual(all, tc.wantAll) {
				t.Errorf("all matches = %v, want %v", all, tc.wantAll)
			}
			if !reflect.DeepEqual(watchlist, tc.wantWatchlist) {
				t.Errorf("watchlist matches = %v, want %v", watchlist, tc.wantWatchlist)
			}
		})
	}
}

func TestExtractWatchlistIsSubset(t *testing.T) {
	e := testEngine()
	all, watchlist := e.Extract("NVDA AAPL TSLA ARM F and some noise")

	inAll := make(map[string]bool, len(all))
	for _, ticker := range all {
		inAll[ticker] = true
	}
	for _, ticker := range watchlist {
		if !inAll[ticker] {
			t.Errorf("watchlist match %q not present in all matches %v", ticker, all)
		}
	}
}

func TestTagBatchMarksEveryPost(t *testing.T) {
	repo := &mockRepo{
		untagged: []models.Post{
			{ID: "p1", Title: "NVDA earnings", Description: "also AAPL", Link: "https://example.com/p1"},
			{ID: "p2", Title: "TSLA update", Link: "https://example.com/p2"},
			{ID: "p3", Title: "macro chat", Link: "https://example.com/p3"},
		},
	}

	alerts, err := testEngine().TagBatch(context.Background(), repo)
	if err != nil {
		t.Fatalf("TagBatch() failed: %v", err)
	}

	// Every post gets marked, matches or not.
	if len(repo.tagged) != 3 {
		t.Fatalf("expected 3 MarkTagged calls, got %d", len(repo.tagged))
	}

	// Only the watchlist hit becomes an alert.
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].ID != "p1" {
		t.Errorf("expected alert for p1, got %s", alerts[0].ID)
	}
	if want := []string{"NVDA"}; !reflect.DeepEqual(alerts[0].WatchlistMatches, want) {
		t.Errorf("alert watchlist matches = %v, want %v", alerts[0].WatchlistMatches, want)
	}
	if want := []string{"AAPL", "NVDA"}; !reflect.DeepEqual(alerts[0].AllMatches, want) {
		t.Errorf("alert all matches = %v, want %v", alerts[0].AllMatches, want)
	}

	// The universe-only post is persisted with its matches but no alert.
	if want := []string{"TSLA"}; !reflect.DeepEqual(repo.tagged[1].allMatches, want) {
		t.Errorf("p2 persisted all matches = %v, want %v", repo.tagged[1].allMatches, want)
	}
	if len(repo.tagged[1].watchlistMatches) != 0 {
		t.Errorf("p2 persisted watchlist matches = %v, want none", repo.tagged[1].watchlistMatches)
	}
}

func TestTagBatchEmptyBatch(t *testing.T) {
	repo := &mockRepo{}
	alerts, err := testEngine().TagBatch(context.Background(), repo)
	if err != nil {
		t.Fatalf("TagBatch() failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(alerts))
	}
}

func TestTagBatchPropagatesMarkTaggedError(t *testing.T) {
	repo := &mockRepo{
		untagged:      []models.Post{{ID: "p1", Title: "NVDA", Link: "https://example.com/p1"}},
		markTaggedErr: storage.ErrNotFound,
	}

	_, err := testEngine().TagBatch(context.Background(), repo)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound to propagate, got %v", err)
	}
}
