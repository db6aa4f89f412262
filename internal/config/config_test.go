package config

import (
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so tests start from defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORAGE_ENGINE", "SQLITE_PATH", "GOOGLE_CLOUD_PROJECT",
		"BROWSER_ENGINE", "FEED_URL", "SIGN_IN_URL", "FEED_EMAIL", "FEED_PASSWORD",
		"HEADLESS", "POLL_INTERVAL", "LOOKBACK_DAYS", "RENDER_TIMEOUT",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"SETTINGS_PATH", "WATCHLISTS_PATH", "WATCHLIST_NAME", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.StorageEngine != StorageSQLite {
		t.Errorf("expected default storage engine %q, got %q", StorageSQLite, cfg.StorageEngine)
	}
	if cfg.SQLitePath != "posts.db" {
		t.Errorf("expected default sqlite path posts.db, got %q", cfg.SQLitePath)
	}
	if cfg.BrowserEngine != BrowserPlaywright {
		t.Errorf("expected default browser engine %q, got %q", BrowserPlaywright, cfg.BrowserEngine)
	}
	if !cfg.Headless {
		t.Error("expected headless by default")
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("expected default poll interval 5m, got %v", cfg.PollInterval)
	}
	if cfg.LookbackDays != 3 {
		t.Errorf("expected default lookback 3, got %d", cfg.LookbackDays)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
}

func TestLoadClampsPollInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.PollInterval != MinPollInterval {
		t.Errorf("expected poll interval clamped to %v, got %v", MinPollInterval, cfg.PollInterval)
	}
}

func TestLoadClampsLookbackDays(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"below minimum", "0", MinLookbackDays},
		{"above maximum", "30", MaxLookbackDays},
		{"in range", "5", 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOOKBACK_DAYS", tc.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if cfg.LookbackDays != tc.expected {
				t.Errorf("LOOKBACK_DAYS=%s: expected %d, got %d", tc.value, tc.expected, cfg.LookbackDays)
			}
		})
	}
}

func TestLoadRejectsUnknownEngines(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_ENGINE", "postgres")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown STORAGE_ENGINE")
	}

	clearEnv(t)
	t.Setenv("BROWSER_ENGINE", "selenium")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown BROWSER_ENGINE")
	}
}

func TestLoadFirestoreRequiresProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_ENGINE", StorageFirestore)

	if _, err := Load(); err == nil {
		t.Error("expected error when STORAGE_ENGINE=firestore without GOOGLE_CLOUD_PROJECT")
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "demo-project")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.FirestoreProjectID != "demo-project" {
		t.Errorf("expected project id demo-project, got %q", cfg.FirestoreProjectID)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"HEADLESS", "maybe"},
		{"POLL_INTERVAL", "five minutes"},
		{"LOOKBACK_DAYS", "three"},
		{"RENDER_TIMEOUT", "90"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}
