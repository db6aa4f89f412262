// Package settings supplies the ticker universe and the user watchlist to
// the tagging engine. Both live in plain JSON files that are edited outside
// this process; they are re-read at the start of every tagging cycle so
// edits take effect on the next cycle, never mid-cycle.
package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
	"github.com/kmorrow0/edge-alert-bot/internal/models"
)

//go:embed tickers.json
var embeddedTickers []byte

// Settings is one cycle's read-only snapshot.
type Settings struct {
	Universe  []string
	Watchlist []string
}

type settingsFile struct {
	Tickers []string `json:"tickers"`
}

type Provider struct {
	settingsPath   string
	watchlistsPath string
	watchlistName  string
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		settingsPath:   cfg.SettingsPath,
		watchlistsPath: cfg.WatchlistsPath,
		watchlistName:  cfg.WatchlistName,
	}
}

// Load reads both files fresh. A missing settings file falls back to the
// embedded default universe; a missing watchlists file means an empty
// watchlist (tagging still runs, nothing alerts).
func (p *Provider) Load() (Settings, error) {
	universe, err := p.loadUniverse()
	if err != nil {
		return Settings{}, err
	}
	watchlist, err := p.loadWatchlist()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Universe:  universe,
		Watchlist: watchlist,
	}, nil
}

func (p *Provider) loadUniverse() ([]string, error) {
	data, err := os.ReadFile(p.settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Settings file not found, using embedded default ticker universe", "path", p.settingsPath)
			data = embeddedTickers
		} else {
			return nil, fmt.Errorf("read settings file %s: %w", p.settingsPath, err)
		}
	}

	var parsed settingsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", p.settingsPath, err)
	}
	if len(parsed.Tickers) == 0 {
		var fallback settingsFile
		if err := json.Unmarshal(embeddedTickers, &fallback); err != nil {
			return nil, fmt.Errorf("parse embedded ticker universe: %w", err)
		}
		parsed.Tickers = fallback.Tickers
	}
	return normalize(parsed.Tickers), nil
}

// loadWatchlist reads the named watchlist, or the union of all lists when no
// name is configured.
func (p *Provider) loadWatchlist() ([]string, error) {
	data, err := os.ReadFile(p.watchlistsPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Watchlists file not found, watchlist is empty", "path", p.watchlistsPath)
			return nil, nil
		}
		return nil, fmt.Errorf("read watchlists file %s: %w", p.watchlistsPath, err)
	}

	var lists map[string][]string
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("parse watchlists file %s: %w", p.watchlistsPath, err)
	}

	if p.watchlistName != "" {
		tickers, ok := lists[p.watchlistName]
		if !ok {
			return nil, fmt.Errorf("watchlist %q not found in %s", p.watchlistName, p.watchlistsPath)
		}
		return normalize(tickers), nil
	}

	var union []string
	for _, tickers := range lists {
		union = append(union, tickers...)
	}
	return normalize(union), nil
}

func normalize(tickers []string) []string {
	upper := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			upper = append(upper, t)
		}
	}
	return models.NormalizeTickers(upper)
}
