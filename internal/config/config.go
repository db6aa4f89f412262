package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage engine selection values for STORAGE_ENGINE.
const (
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

// Browser engine selection values for BROWSER_ENGINE.
const (
	BrowserPlaywright = "playwright"
	BrowserChromedp   = "chromedp"
)

const (
	// MinPollInterval keeps the scraper from hammering the feed. It also has
	// to be long enough for a pass to reach a post older than the lookback
	// window before the next pass starts.
	MinPollInterval = 2 * time.Minute

	// MinLookbackDays and MaxLookbackDays bound the pagination window.
	// Seven days already renders as "1w ago"; week-old posts are obsolete.
	MinLookbackDays = 1
	MaxLookbackDays = 6
)

type Config struct {
	StorageEngine      string
	SQLitePath         string
	FirestoreProjectID string

	BrowserEngine string
	FeedURL       string
	SignInURL     string
	FeedEmail     string
	FeedPassword  string
	Headless      bool

	// PollInterval is the harvest cadence the external scheduler should
	// honor when hitting /harvest. The process runs no timer of its own;
	// the clamp keeps a misconfigured scheduler from hammering the feed.
	PollInterval  time.Duration
	LookbackDays  int
	RenderTimeout time.Duration

	TelegramBotToken string
	TelegramChatID   string

	SettingsPath   string
	WatchlistsPath string
	WatchlistName  string

	Port string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	storageEngine := os.Getenv("STORAGE_ENGINE")
	if storageEngine == "" {
		storageEngine = StorageSQLite
		slog.Info("Defaulting to storage engine", "engine", storageEngine)
	}
	if storageEngine != StorageSQLite && storageEngine != StorageFirestore {
		return nil, fmt.Errorf("invalid STORAGE_ENGINE %q: must be %q or %q", storageEngine, StorageSQLite, StorageFirestore)
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "posts.db"
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if storageEngine == StorageFirestore && projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when STORAGE_ENGINE=firestore")
	}

	browserEngine := os.Getenv("BROWSER_ENGINE")
	if browserEngine == "" {
		browserEngine = BrowserPlaywright
	}
	if browserEngine != BrowserPlaywright && browserEngine != BrowserChromedp {
		return nil, fmt.Errorf("invalid BROWSER_ENGINE %q: must be %q or %q", browserEngine, BrowserPlaywright, BrowserChromedp)
	}

	feedURL := os.Getenv("FEED_URL")
	if feedURL == "" {
		feedURL = "https://tradingedge.club/feed?sort=newest"
	}
	signInURL := os.Getenv("SIGN_IN_URL")
	if signInURL == "" {
		signInURL = "https://tradingedge.club/sign_in"
	}

	feedEmail := os.Getenv("FEED_EMAIL")
	feedPassword := os.Getenv("FEED_PASSWORD")
	if feedEmail == "" || feedPassword == "" {
		slog.Warn("FEED_EMAIL/FEED_PASSWORD not set, harvest cycles will fail to authenticate")
	}

	headless := true
	if v := os.Getenv("HEADLESS"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HEADLESS %q: %w", v, err)
		}
		headless = parsed
	}

	pollInterval := 5 * time.Minute
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		pollInterval = parsed
	}
	if pollInterval < MinPollInterval {
		slog.Warn("POLL_INTERVAL below minimum, clamping", "requested", pollInterval, "minimum", MinPollInterval)
		pollInterval = MinPollInterval
	}

	lookbackDays := 3
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOOKBACK_DAYS %q: %w", v, err)
		}
		lookbackDays = parsed
	}
	if lookbackDays < MinLookbackDays {
		slog.Warn("LOOKBACK_DAYS below minimum, clamping", "requested", lookbackDays, "minimum", MinLookbackDays)
		lookbackDays = MinLookbackDays
	}
	if lookbackDays > MaxLookbackDays {
		slog.Warn("LOOKBACK_DAYS above maximum, clamping", "requested", lookbackDays, "maximum", MaxLookbackDays)
		lookbackDays = MaxLookbackDays
	}

	renderTimeout := 90 * time.Second
	if v := os.Getenv("RENDER_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RENDER_TIMEOUT %q: %w", v, err)
		}
		renderTimeout = parsed
	}

	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramChatID := os.Getenv("TELEGRAM_CHAT_ID")
	if telegramBotToken == "" || telegramChatID == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID not set, alerts will be skipped")
	}

	settingsPath := os.Getenv("SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = "settings.json"
	}
	watchlistsPath := os.Getenv("WATCHLISTS_PATH")
	if watchlistsPath == "" {
		watchlistsPath = "watchlists.json"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	return &Config{
		StorageEngine:      storageEngine,
		SQLitePath:         sqlitePath,
		FirestoreProjectID: projectID,
		BrowserEngine:      browserEngine,
		FeedURL:            feedURL,
		SignInURL:          signInURL,
		FeedEmail:          feedEmail,
		FeedPassword:       feedPassword,
		Headless:           headless,
		PollInterval:       pollInterval,
		LookbackDays:       lookbackDays,
		RenderTimeout:      renderTimeout,
		TelegramBotToken:   telegramBotToken,
		TelegramChatID:     telegramChatID,
		SettingsPath:       settingsPath,
		WatchlistsPath:     watchlistsPath,
		WatchlistName:      os.Getenv("WATCHLIST_NAME"),
		Port:               port,
	}, nil
}
