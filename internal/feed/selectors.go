package feed

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

type SelectorConfig struct {
	Login LoginSelectors `json:"login"`
	Feed  FeedSelectors  `json:"feed"`
}

type LoginSelectors struct {
	EmailInput    string `json:"email_input"`
	PasswordInput string `json:"password_input"`
	SubmitButton  string `json:"submit_button"`
	// LoggedInURL is the URL glob that confirms a successful sign-in.
	LoggedInURL string `json:"logged_in_url"`
}

type FeedSelectors struct {
	Item        string `json:"item"`         // e.g. "li.feed-item"
	PostIDAttr  string `json:"post_id_attr"` // attribute on Item carrying the id
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LikeCount   string `json:"like_count"`
	CommentCnt  string `json:"comment_count"`
	PostLink    string `json:"post_link"` // href attribute holds the permalink
	Category    string `json:"category"`
	CreatedAt   string `json:"created_at"` // relative age, "Posted 3d ago"
	// CreatedAtTitleAttr names the tooltip attribute on CreatedAt that carries
	// an absolute timestamp when the site renders one.
	CreatedAtTitleAttr string `json:"created_at_title_attr"`
	SeeMore            string `json:"see_more"`
	SeeLess            string `json:"see_less"`
}

// LoadSelectors tries the embedded selectors.json first, then an external
// file named by SELECTORS_CONFIG_PATH, then the hardcoded defaults.
func LoadSelectors() SelectorConfig {
	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := parseSelectors(data)
		if parseErr == nil {
			return sel
		}
		slog.Warn("Embedded selectors failed to parse. Trying file fallback.", "error", parseErr)
	}

	configPath := os.Getenv("SELECTORS_CONFIG_PATH")
	if configPath == "" {
		configPath = "config/selectors.json"
	}
	if fileData, err := os.ReadFile(configPath); err == nil {
		if sel, parseErr := parseSelectors(fileData); parseErr == nil {
			slog.Info("Loaded selectors from external file", "path", configPath)
			return sel
		}
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}

func parseSelectors(data []byte) (SelectorConfig, error) {
	var cfg SelectorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	return cfg, nil
}

// DefaultSelectors is the fallback if no JSON config can be loaded. The
// embedded selectors.json should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Login: LoginSelectors{
			EmailInput:    `input[name="email"]`,
			PasswordInput: `input[name="password"]`,
			SubmitButton:  `text="Sign In"`,
			LoggedInURL:   "https://tradingedge.club/spaces/**",
		},
		Feed: FeedSelectors{
			Item:               "li.feed-item",
			PostIDAttr:         "data-post-id",
			Author:             ".mighty-attribution-name span",
			Title:              ".feed-item-post-title h1",
			Description:        ".feed-item-post-description",
			LikeCount:          ".mighty-post-stat-cheer .mighty-post-stat-cheer-count",
			CommentCnt:         ".mighty-post-stat-comment .mighty-post-stat-comment-count",
			PostLink:           ".feed-item-post",
			Category:           ".post-tag-name",
			CreatedAt:          ".feed-item-meta-location .feed-item-post-created-at",
			CreatedAtTitleAttr: "title",
			SeeMore:            ".feed-item-post-description .show-more-button",
			SeeLess:            ".feed-item-post-description .show-less-button",
		},
	}
}
