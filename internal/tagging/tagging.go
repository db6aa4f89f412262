// Package tagging extracts ticker symbols from harvested posts and records
// them, exactly once per post, through the repository contract.
package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/kmorrow0/edge-alert-bot/internal/models"
	"github.com/kmorrow0/edge-alert-bot/internal/settings"
	"github.com/kmorrow0/edge-alert-bot/internal/storage"
)

// tickerTokenRegex is a deliberately permissive superset filter: any
// uppercase run of 1-7 letters on word boundaries is a candidate. The ticker
// universe does the real filtering.
var tickerTokenRegex = regexp.MustCompile(`\b[A-Z]{1,7}\b`)

// Alert is one post whose text matched the watchlist.
type Alert struct {
	ID               string
	Title            string
	Link             string
	WatchlistMatches []string
	AllMatches       []string
}

// Engine classifies candidate tokens against a per-cycle snapshot of the
// ticker universe and watchlist. Build a fresh Engine each cycle.
type Engine struct {
	universe  map[string]struct{}
	watchlist map[string]struct{}
}

func NewEngine(s settings.Settings) *Engine {
	e := &Engine{
		universe:  make(map[string]struct{}, len(s.Universe)),
		watchlist: make(map[string]struct{}, len(s.Watchlist)),
	}
	for _, t := range s.Universe {
		e.universe[t] = struct{}{}
	}
	for _, t := range s.Watchlist {
		// The watchlist is a subset of the universe by construction; a
		// watchlist entry outside the universe could never match anyway.
		e.watchlist[t] = struct{}{}
	}
	return e
}

// Extract scans free text and returns every universe ticker it mentions and
// the subset of those on the watchlist. Both results come back deduplicated
// and sorted.
func (e *Engine) Extract(text string) (allMatches, watchlistMatches []string) {
	for _, token := range tickerTokenRegex.FindAllString(text, -1) {
		if _, ok := e.universe[token]; ok {
			allMatches = append(allMatches, token)
		}
	}
	allMatches = models.NormalizeTickers(allMatches)
	for _, t := range allMatches {
		if _, ok := e.watchlist[t]; ok {
			watchlistMatches = append(watchlistMatches, t)
		}
	}
	return allMatches, models.NormalizeTickers(watchlistMatches)
}

// TagBatch visits every untagged post, persists its match sets, and returns
// the posts that matched the watchlist. Every visited post is marked tagged
// whether or not it matched anything, so no post is ever re-scanned.
func (e *Engine) TagBatch(ctx context.Context, repo storage.PostRepository) ([]Alert, error) {
	untagged, err := repo.ListUntagged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list untagged posts: %w", err)
	}

	var alerts []Alert
	for _, post := range untagged {
		// A missing title or description joins as an empty string; a post is
		// never skipped for having only one of the two.
		allMatches, watchlistMatches := e.Extract(post.Title + " " + post.Description)

		if err := repo.MarkTagged(ctx, post.ID, watchlistMatches, allMatches); err != nil {
			return nil, fmt.Errorf("mark post %s tagged: %w", post.ID, err)
		}

		if len(watchlistMatches) > 0 {
			alerts = append(alerts, Alert{
				ID:               post.ID,
				Title:            post.Title,
				Link:             post.Link,
				WatchlistMatches: watchlistMatches,
				AllMatches:       allMatches,
			})
		}
	}

	slog.Info("Tagging pass finished", "tagged", len(untagged), "alertable", len(alerts))
	return alerts, nil
}
