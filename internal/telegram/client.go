// Package telegram is a minimal Bot API client covering the calls the
// webhook server needs: sending messages, registering the webhook and
// checking connectivity.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const apiBase = "https://api.telegram.org"

// Telegram caps bots at roughly 30 messages per second overall.
const sendRatePerSecond = 25

// Sender is the outbound surface the dispatcher consumes.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Client is a Telegram Bot API client. Sends are rate limited so a burst
// of answers cannot trip the Bot API's flood control.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Tests point it at a local server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Bot API client for the given token.
func New(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(sendRatePerSecond), sendRatePerSecond),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage sends a text message to one chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if _, err := c.call(ctx, "sendMessage", payload); err != nil {
		return fmt.Errorf("sendMessage to chat %d: %w", chatID, err)
	}
	return nil
}

// SetWebhook registers the webhook URL with the Bot API.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]any{"url": webhookURL}
	if _, err := c.call(ctx, "setWebhook", payload); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	c.logger.Info("telegram webhook registered", "url", webhookURL)
	return nil
}

// GetWebhookInfo returns the current webhook registration state.
func (c *Client) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	result, err := c.call(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("getWebhookInfo: %w", err)
	}
	var info WebhookInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("decoding webhook info: %w", err)
	}
	return &info, nil
}

// GetMe verifies the token against the Bot API and returns the bot account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	result, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return nil, fmt.Errorf("getMe: %w", err)
	}
	var me User
	if err := json.Unmarshal(result, &me); err != nil {
		return nil, fmt.Errorf("decoding bot account: %w", err)
	}
	return &me, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("bot API error (code %d): %s", api.ErrorCode, api.Description)
	}
	return api.Result, nil
}
