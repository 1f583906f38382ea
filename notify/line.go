package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers human-readable reports
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Line posts messages to LINE Notify
type Line struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *zap.Logger
}

func NewLine(endpoint, token string, timeout time.Duration, logger *zap.Logger) *Line {
	return &Line{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (l *Line) Notify(ctx context.Context, message string) error {
	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	l.logger.Debug("Notification sent", zap.Int("length", len(message)))
	return nil
}

// Nop drops every message
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// New returns a LINE notifier, or Nop when no token is configured
func New(endpoint, token string, timeout time.Duration, logger *zap.Logger) Notifier {
	if token == "" {
		logger.Info("No LINE token configured, notifications disabled")
		return Nop{}
	}
	return NewLine(endpoint, token, timeout, logger)
}
