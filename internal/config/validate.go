package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// minReconnectInterval mirrors the gateway backoff reset value; a ceiling
// below it would be raised anyway.
const minReconnectInterval = 5 * time.Second

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if err := validateURL("gateway.url", c.Gateway.URL, "ws", "wss"); err != nil {
		return err
	}
	if c.Gateway.Token == "" {
		return errors.New("gateway.token is required")
	}
	if c.Gateway.MaxReconnectInterval < minReconnectInterval {
		return fmt.Errorf("gateway.max_reconnect_interval must be >= %v, got %v", minReconnectInterval, c.Gateway.MaxReconnectInterval)
	}
	if c.Gateway.PingTimeout < c.Gateway.PingInterval {
		return fmt.Errorf("gateway.ping_timeout (%v) cannot be less than ping_interval (%v)", c.Gateway.PingTimeout, c.Gateway.PingInterval)
	}

	if c.Sink.WebhookURL == "" {
		return errors.New("sink.webhook_url is required")
	}
	if err := validateURL("sink.webhook_url", c.Sink.WebhookURL, "http", "https"); err != nil {
		return err
	}
	if c.Sink.RatePerSec < 1 {
		return errors.New("sink.rate_per_sec must be >= 1")
	}
	if c.Sink.OverrideAvatarURL != "" {
		if err := validateURL("sink.override_avatar_url", c.Sink.OverrideAvatarURL, "http", "https"); err != nil {
			return err
		}
	}

	if err := validateColor("theme.colors.success", c.Theme.Colors.Success); err != nil {
		return err
	}
	if err := validateColor("theme.colors.error", c.Theme.Colors.Error); err != nil {
		return err
	}
	if err := validateColor("theme.colors.none", c.Theme.Colors.None); err != nil {
		return err
	}

	if !c.Health.Disabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s is missing a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}

func validateColor(field string, v *int) error {
	if v == nil {
		return fmt.Errorf("%s is required", field)
	}
	if *v < 0 || *v > 0xFFFFFF {
		return fmt.Errorf("%s must be between 0x000000 and 0xFFFFFF, got %#x", field, *v)
	}
	return nil
}
