package feed

import (
	"context"
	"fmt"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
)

// Source is a logged-in browser session on the feed site. The harvester only
// needs four capabilities: authenticate, navigate, trigger the next lazy-load
// render, and capture the rendered document.
//
// The site has no pagination API; new content loads when the page is scrolled
// to the bottom, so "next page" means scroll-and-settle.
type Source interface {
	// Login authenticates the session. Must be called before Navigate.
	Login(ctx context.Context, email, password string) error

	// Navigate opens the given feed URL and waits for the initial render.
	Navigate(ctx context.Context, url string) error

	// RenderNextPage scrolls to the bottom to trigger lazy loading and waits
	// for the page to settle.
	RenderNextPage(ctx context.Context) error

	// CaptureHTML expands any collapsed long-form descriptions, returns the
	// fully rendered document, then collapses them again.
	CaptureHTML(ctx context.Context) (string, error)

	Close() error
}

// NewSource constructs the browser driver selected by cfg.BrowserEngine.
func NewSource(cfg *config.Config, selectors SelectorConfig) (Source, error) {
	switch cfg.BrowserEngine {
	case config.BrowserPlaywright:
		return NewPlaywrightSource(cfg, selectors)
	case config.BrowserChromedp:
		return NewChromedpSource(cfg, selectors)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.BrowserEngine)
	}
}
