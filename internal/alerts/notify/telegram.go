package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type sendMessagePayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// TelegramMessenger sends chat messages through the Telegram Bot API.
// Recipient ids are Telegram chat ids.
type TelegramMessenger struct {
	baseURL string
	token   string
	client  *http.Client
}

// TelegramOption configures the messenger.
type TelegramOption func(*TelegramMessenger)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(m *TelegramMessenger) {
		if client != nil {
			m.client = client
		}
	}
}

// NewTelegramMessenger constructs a messenger. baseURL falls back to
// the public Bot API host when empty.
func NewTelegramMessenger(baseURL, token string, opts ...TelegramOption) (*TelegramMessenger, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram messenger: empty token")
	}
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	messenger := &TelegramMessenger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(messenger)
	}
	return messenger, nil
}

// Send posts a sendMessage call for one recipient.
func (m *TelegramMessenger) Send(ctx context.Context, recipientID, text string) error {
	if m == nil || m.token == "" {
		return errors.New("telegram messenger: empty token")
	}
	if recipientID == "" {
		return errors.New("telegram messenger: empty recipient")
	}

	body, err := json.Marshal(sendMessagePayload{ChatID: recipientID, Text: text})
	if err != nil {
		return err
	}
	url := m.baseURL + "/bot" + m.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram messenger: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
