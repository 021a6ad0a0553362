package notify

import (
	"log/slog"
	"net/http"
	"time"
)

// WebhookClient executes a single fixed webhook.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// WebhookOption configures a WebhookClient.
type WebhookOption func(*WebhookClient)

// NewWebhookClient creates a client for the webhook at url.
func NewWebhookClient(url string, opts ...WebhookOption) *WebhookClient {
	c := &WebhookClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) WebhookOption {
	return func(c *WebhookClient) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(c *WebhookClient) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) WebhookOption {
	return func(c *WebhookClient) {
		c.httpClient = hc
	}
}

// Endpoint returns the webhook URL with its token segment redacted, for logs.
func (c *WebhookClient) Endpoint() string {
	return RedactURL(c.url)
}
