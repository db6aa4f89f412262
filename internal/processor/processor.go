package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
	"github.com/kmorrow0/edge-alert-bot/internal/feed"
	"github.com/kmorrow0/edge-alert-bot/internal/harvester"
	"github.com/kmorrow0/edge-alert-bot/internal/storage"
	"github.com/kmorrow0/edge-alert-bot/internal/tagging"
	"github.com/kmorrow0/edge-alert-bot/internal/util"
)

// SourceFactory opens a fresh browser session for one harvest cycle.
type SourceFactory func() (feed.Source, error)

// Processor runs the two scheduled cycles: harvest (feed into repository)
// and alerts (tag untagged posts, dispatch watchlist matches). The external
// scheduler drives each on its own timer; the processor only guarantees that
// two harvest cycles never overlap against the same repository.
type Processor struct {
	repo       storage.PostRepository
	newSource  SourceFactory
	selectors  feed.SelectorConfig
	settings   SettingsLoader
	sender     AlertSender
	cfg        *config.Config
	harvestMu  sync.Mutex
	alertsMu   sync.Mutex
}

func New(repo storage.PostRepository, newSource SourceFactory, selectors feed.SelectorConfig, loader SettingsLoader, sender AlertSender, cfg *config.Config) *Processor {
	return &Processor{
		repo:      repo,
		newSource: newSource,
		selectors: selectors,
		settings:  loader,
		sender:    sender,
		cfg:       cfg,
	}
}

// RunHarvest executes one complete harvest cycle: open a session, sign in,
// page through the feed, upsert every post. Any hard upstream failure aborts
// the cycle; the next one starts from a cold pagination state.
func (p *Processor) RunHarvest(ctx context.Context) error {
	if !p.harvestMu.TryLock() {
		slog.Warn("Harvest cycle already running, skipping trigger")
		return nil
	}
	defer p.harvestMu.Unlock()

	source, err := p.newSource()
	if err != nil {
		return fmt.Errorf("open feed session: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			slog.Warn("Failed to close feed session", "error", err)
		}
	}()

	// Transient sign-in failures get a couple of retries; anything that
	// survives them means the upstream is down and the cycle is abandoned.
	err = util.RetryWithBackoff(ctx, 2, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying feed sign-in", "attempt", attempt)
		}
		return source.Login(ctx, p.cfg.FeedEmail, p.cfg.FeedPassword)
	})
	if err != nil {
		return fmt.Errorf("feed sign-in failed: %w", err)
	}

	if err := source.Navigate(ctx, p.cfg.FeedURL); err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	h := harvester.New(source, p.repo, p.selectors, p.cfg)
	newCount, updatedCount, err := h.Harvest(ctx)
	if err != nil {
		return fmt.Errorf("harvest cycle: %w", err)
	}
	slog.Info("Harvest cycle complete", "new", newCount, "updated", updatedCount)
	return nil
}

// RunAlerts executes one tagging-and-dispatch cycle. Settings are reloaded
// at the start of every cycle. A delivery failure is surfaced but does not
// roll back tagging; those posts will not be re-sent.
func (p *Processor) RunAlerts(ctx context.Context) error {
	if !p.alertsMu.TryLock() {
		slog.Warn("Alert cycle already running, skipping trigger")
		return nil
	}
	defer p.alertsMu.Unlock()

	snapshot, err := p.settings.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	engine := tagging.NewEngine(snapshot)
	alerts, err := engine.TagBatch(ctx, p.repo)
	if err != nil {
		return fmt.Errorf("tag untagged posts: %w", err)
	}

	if err := p.sender.Dispatch(ctx, alerts); err != nil {
		slog.Error("Alert delivery failed, batch will not be re-sent", "alerts", len(alerts), "error", err)
		return fmt.Errorf("dispatch alerts: %w", err)
	}
	if len(alerts) > 0 {
		slog.Info("Alert cycle complete", "alerts", len(alerts))
	}
	return nil
}
