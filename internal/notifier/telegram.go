package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kmorrow0/edge-alert-bot/internal/tagging"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram sends watchlist alerts to a Telegram chat through the Bot API.
// Delivery is at-most-once: a failed send is surfaced and logged but the
// batch is never re-queued, because the posts behind it are already marked
// tagged.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Dispatch sends one message covering the whole alertable batch. An empty
// batch sends nothing and is not an error; silence is the expected outcome
// of most cycles.
func (t *Telegram) Dispatch(ctx context.Context, alerts []tagging.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram bot token or chat id not configured")
	}

	payload := sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  renderMessage(alerts),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var msgResponse sendMessageResponse
	if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
		return fmt.Errorf("unmarshal telegram response: %w", err)
	}
	if !msgResponse.OK {
		return fmt.Errorf("telegram rejected message: %s", msgResponse.Description)
	}
	return nil
}

// renderMessage renders the whole batch as one HTML message: ticker(s),
// linked title, one line per post.
func renderMessage(alerts []tagging.Alert) string {
	var b strings.Builder
	b.WriteString("<b>Watchlist mentions</b>\n")
	for _, alert := range alerts {
		b.WriteString("\n")
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(strings.Join(alert.WatchlistMatches, ", ")))
		b.WriteString("</b>: ")
		title := alert.Title
		if title == "" {
			title = "(untitled post)"
		}
		if alert.Link != "" {
			b.WriteString(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(alert.Link), html.EscapeString(title)))
		} else {
			b.WriteString(html.EscapeString(title))
		}
		b.WriteString("\n")
	}
	return b.String()
}
