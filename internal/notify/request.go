package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// APIError represents a non-2xx response from the webhook endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webhook error %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the sink rejected the request for rate reasons.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Execute posts msg to the webhook. It does not retry.
func (c *WebhookClient) Execute(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	target := c.url
	if msg.ThreadID != "" {
		target, err = withQuery(c.url, "thread_id", msg.ThreadID)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, token included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("do request: %s %s: %w", uerr.Op, RedactURL(uerr.URL), uerr.Err)
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("webhook executed",
		"endpoint", c.Endpoint(),
		"status", resp.StatusCode,
	)

	return nil
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactURL replaces the last path segment (the webhook token) with "***".
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	path := strings.TrimSuffix(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 && i < len(path)-1 {
		path = path[:i+1] + "***"
	}
	return u.Scheme + "://" + u.Host + path
}
