// Package notify delivers one-time codes to contact addresses out of band.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, address, code string) error
}

// LogNotifier writes codes to the log. Only suitable for local development.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, address, code string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "one-time code issued", "address", address, "code", code)
	return nil
}

type webhookPayload struct {
	Address string    `json:"address"`
	Code    string    `json:"code"`
	SentAt  time.Time `json:"sentAt"`
}

// WebhookNotifier posts codes as JSON to an external delivery service.
type WebhookNotifier struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookNotifier(url, token string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		URL:    strings.TrimSpace(url),
		Token:  strings.TrimSpace(token),
		Client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, address, code string) error {
	if n.URL == "" {
		return errors.New("notify: webhook URL missing")
	}
	body, err := json.Marshal(webhookPayload{Address: address, Code: code, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			data = []byte(resp.Status)
		}
		return fmt.Errorf("notify: webhook failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
