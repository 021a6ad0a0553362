package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Sink    SinkConfig    `yaml:"sink"`
	Theme   ThemeConfig   `yaml:"theme"`
	Health  HealthConfig  `yaml:"health"`
	Policy  PolicyConfig  `yaml:"policy"`
}

// GatewayConfig holds the upstream websocket settings.
type GatewayConfig struct {
	URL                  string        `yaml:"url"`
	Token                string        `yaml:"token"` // Sent in the "token" handshake header. Never logged.
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	ConnectedNotifyDelay time.Duration `yaml:"connected_notify_delay"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
}

// SinkConfig holds the downstream webhook settings.
type SinkConfig struct {
	WebhookURL        string        `yaml:"webhook_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RatePerSec        int           `yaml:"rate_per_sec"`
	OverrideUsername  string        `yaml:"override_username"`
	OverrideAvatarURL string        `yaml:"override_avatar_url"`
}

// ThemeConfig controls how status notifications are rendered.
type ThemeConfig struct {
	ServiceName string      `yaml:"service_name"`
	Colors      ColorConfig `yaml:"colors"`
	Emojis      EmojiConfig `yaml:"emojis"`
}

// ColorConfig holds embed colors as 24-bit RGB integers. Nil means unset,
// so 0x000000 stays configurable.
type ColorConfig struct {
	Success *int `yaml:"success"`
	Error   *int `yaml:"error"`
	None    *int `yaml:"none"`
}

// EmojiConfig holds the prefixes used in status embeds.
type EmojiConfig struct {
	Success string `yaml:"success"`
	Error   string `yaml:"error"`
	None    string `yaml:"none"`
}

// HealthConfig holds the status endpoint settings.
type HealthConfig struct {
	Disabled bool `yaml:"disabled"`
	Port     int  `yaml:"port"`
}

// PolicyConfig decides what happens after a terminal close code.
type PolicyConfig struct {
	ExitOnTerminal bool `yaml:"exit_on_terminal"`
}
