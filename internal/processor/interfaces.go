package processor

import (
	"context"

	"github.com/kmorrow0/edge-alert-bot/internal/settings"
	"github.com/kmorrow0/edge-alert-bot/internal/tagging"
)

// AlertSender abstracts the notification channel.
type AlertSender interface {
	Dispatch(ctx context.Context, alerts []tagging.Alert) error
}

// SettingsLoader supplies a fresh universe/watchlist snapshot per cycle.
type SettingsLoader interface {
	Load() (settings.Settings, error)
}
