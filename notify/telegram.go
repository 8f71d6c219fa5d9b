package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Telegram sends run notifications through the bot API. A notifier built
// without credentials is disabled and drops messages silently, so callers
// never branch on configuration.
type Telegram struct {
	client   *http.Client
	botToken string
	chatID   string
	baseURL  string
}

func NewTelegram(client *http.Client, botToken, chatID string) *Telegram {
	return &Telegram{
		client:   client,
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
	}
}

func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// SendMessage posts one HTML-formatted message to the configured chat.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
