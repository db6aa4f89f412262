package models

import (
	"sort"
	"time"
)

// Post represents one harvested feed item. The upstream site assigns the ID;
// everything else is best-effort extraction from the rendered feed element.
type Post struct {
	ID          string    `firestore:"-" db:"id" validate:"required"`
	Author      string    `firestore:"author" db:"author"`
	Title       string    `firestore:"title" db:"title"`
	Description string    `firestore:"description" db:"description"`
	Link        string    `firestore:"link" db:"link" validate:"required"`
	Category    string    `firestore:"category" db:"category"`
	PostedAt    time.Time `firestore:"postedAt" db:"posted_at"`
	Likes       int       `firestore:"likes" db:"likes" validate:"gte=0"`
	Comments    int       `firestore:"comments" db:"comments" validate:"gte=0"`

	// Tagging state. ContentTagged is a one-way transition; once true the
	// match sets never change again.
	ContentTagged    bool     `firestore:"contentTagged" db:"content_tagged"`
	WatchlistMatches []string `firestore:"watchlistMatches" db:"watchlist_matches"`
	AllMatches       []string `firestore:"allMatches" db:"all_matches"`

	LastUpdated time.Time `firestore:"lastUpdated" db:"last_updated"`
}

// NormalizeTickers returns the set deduplicated and sorted. Both match sets
// are stored in this form so the two storage backends stay byte-comparable.
func NormalizeTickers(tickers []string) []string {
	if len(tickers) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
