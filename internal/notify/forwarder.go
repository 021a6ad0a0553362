package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Payload errors. Both mean the gateway frame was unusable, not that the
// sink failed.
var (
	ErrMissingData = errors.New("missing webhook data")
	ErrInvalidData = errors.New("invalid webhook data")
)

// Sink delivers a rendered message. *WebhookClient implements it.
type Sink interface {
	Execute(ctx context.Context, msg Message) error
}

// Overrides replace the identity of gateway-sourced messages when set.
type Overrides struct {
	Username  string
	AvatarURL string
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	Theme      Theme
	Overrides  Overrides
	Timeout    time.Duration // Per-delivery bound, including the rate limit wait
	RatePerSec int           // Token bucket rate and burst
}

// Forwarder renders notifications and hands them to the sink. It keeps no
// state between calls besides the sink and the limiter.
type Forwarder struct {
	sink    Sink
	cfg     ForwarderConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewForwarder creates a Forwarder delivering to sink.
func NewForwarder(sink Sink, cfg ForwarderConfig, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.RatePerSec
	}

	return &Forwarder{
		sink:    sink,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Render returns the message Status would send for s.
func (f *Forwarder) Render(s Status) Message {
	return f.cfg.Theme.Render(s)
}

// Status sends a lifecycle notification.
func (f *Forwarder) Status(ctx context.Context, s Status) error {
	if err := f.deliver(ctx, f.Render(s)); err != nil {
		return fmt.Errorf("send %s status: %w", s, err)
	}
	return nil
}

// Forward sends a gateway-sourced webhook payload.
func (f *Forwarder) Forward(ctx context.Context, data json.RawMessage) error {
	msg, err := f.Prepare(data)
	if err != nil {
		return err
	}
	if err := f.deliver(ctx, msg); err != nil {
		return fmt.Errorf("forward webhook: %w", err)
	}
	return nil
}

// Prepare decodes a gateway payload and applies the identity overrides and
// mention suppression. Keys the relay does not interpret are forwarded as
// sent.
func (f *Forwarder) Prepare(data json.RawMessage) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Message{}, ErrMissingData
	}

	msg, err := decodeWebhookData(trimmed)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	if f.cfg.Overrides.Username != "" {
		msg.Username = f.cfg.Overrides.Username
		delete(msg.Fields, "username")
	}
	if f.cfg.Overrides.AvatarURL != "" {
		msg.AvatarURL = f.cfg.Overrides.AvatarURL
		delete(msg.Fields, "avatar_url")
	}
	msg.AllowedMentions = SuppressMentions()

	return msg, nil
}

func (f *Forwarder) deliver(ctx context.Context, msg Message) error {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		f.logger.Debug("webhook send delayed by rate limit", "waited", waited)
	}

	return f.sink.Execute(ctx, msg)
}
