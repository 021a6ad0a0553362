package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultMaxReconnectInterval = 5 * time.Minute
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultConnectedNotifyDelay = 1 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultSinkTimeout          = 10 * time.Second
	DefaultRatePerSec           = 5
	DefaultServiceName          = "Sol's Stat Tracker"
	DefaultColorSuccess         = 0x57F287
	DefaultColorError           = 0xED4245
	DefaultColorNone            = 0x99AAB5
	DefaultEmojiSuccess         = "✅"
	DefaultEmojiError           = "❌"
	DefaultEmojiNone            = "⚪"
	DefaultHealthPort           = 8080
)

func (c *RelayConfig) applyDefaults() {
	// Gateway defaults
	if c.Gateway.Token == "" {
		c.Gateway.Token = os.Getenv(TokenEnv)
	}
	if c.Gateway.MaxReconnectInterval == 0 {
		c.Gateway.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = DefaultPingInterval
	}
	if c.Gateway.PingTimeout == 0 {
		c.Gateway.PingTimeout = DefaultPingTimeout
	}
	if c.Gateway.ConnectedNotifyDelay == 0 {
		c.Gateway.ConnectedNotifyDelay = DefaultConnectedNotifyDelay
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Sink defaults
	if c.Sink.Timeout == 0 {
		c.Sink.Timeout = DefaultSinkTimeout
	}
	if c.Sink.RatePerSec == 0 {
		c.Sink.RatePerSec = DefaultRatePerSec
	}

	// Theme defaults
	if c.Theme.ServiceName == "" {
		c.Theme.ServiceName = DefaultServiceName
	}
	if c.Theme.Colors.Success == nil {
		c.Theme.Colors.Success = intPtr(DefaultColorSuccess)
	}
	if c.Theme.Colors.Error == nil {
		c.Theme.Colors.Error = intPtr(DefaultColorError)
	}
	if c.Theme.Colors.None == nil {
		c.Theme.Colors.None = intPtr(DefaultColorNone)
	}
	if c.Theme.Emojis.Success == "" {
		c.Theme.Emojis.Success = DefaultEmojiSuccess
	}
	if c.Theme.Emojis.Error == "" {
		c.Theme.Emojis.Error = DefaultEmojiError
	}
	if c.Theme.Emojis.None == "" {
		c.Theme.Emojis.None = DefaultEmojiNone
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func intPtr(v int) *int {
	return &v
}
