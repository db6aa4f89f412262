package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
	"github.com/kmorrow0/edge-alert-bot/internal/feed"
	"github.com/kmorrow0/edge-alert-bot/internal/notifier"
	"github.com/kmorrow0/edge-alert-bot/internal/processor"
	"github.com/kmorrow0/edge-alert-bot/internal/settings"
	"github.com/kmorrow0/edge-alert-bot/internal/storage"
)

type server struct {
	processor *processor.Processor
	cycleTime time.Duration
}

func main() {
	slog.Info("Starting edge alert bot...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("Critical error opening storage backend", "engine", cfg.StorageEngine, "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("Storage backend ready", "engine", cfg.StorageEngine)

	selectors := feed.LoadSelectors()
	sourceFactory := func() (feed.Source, error) {
		return feed.NewSource(cfg, selectors)
	}

	sender := notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	loader := settings.NewProvider(cfg)
	p := processor.New(repo, sourceFactory, selectors, loader, sender, cfg)

	// Harvest cycles page a browser through the feed; give them room beyond
	// the per-render timeout.
	srv := &server{processor: p, cycleTime: 10 * time.Minute}

	mux := http.NewServeMux()
	mux.HandleFunc("/harvest", srv.harvestHandler)
	mux.HandleFunc("/alerts", srv.alertsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port, "harvestCadence", cfg.PollInterval)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// harvestHandler triggers one harvest cycle. The external scheduler hits
// this on the polling cadence; the response is immediate and the cycle runs
// in the background under its own timeout so one failed cycle never blocks
// the next trigger.
func (s *server) harvestHandler(w http.ResponseWriter, r *http.Request) {
	s.runAsync("harvest", s.processor.RunHarvest)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Harvest cycle started.")
}

// alertsHandler triggers one tagging-and-dispatch cycle.
func (s *server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	s.runAsync("alerts", s.processor.RunAlerts)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Alert cycle started.")
}

func (s *server) runAsync(name string, run func(context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in cycle", "cycle", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.cycleTime)
		defer cancel()
		if err := run(ctx); err != nil {
			slog.Error("Cycle failed", "cycle", name, "error", err)
		}
	}()
}
