package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solstat/webhook-relay/internal/notify"
)

// Notifier receives everything the manager wants delivered to the sink.
// *notify.Forwarder implements it.
type Notifier interface {
	Status(ctx context.Context, s notify.Status) error
	Forward(ctx context.Context, data json.RawMessage) error
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	State            State
	SessionID        string
	Attempts         int64
	Backoff          time.Duration
	LastCloseCode    int
	LastCloseReason  string
	ConnectedSince   time.Time // Zero unless State is StateOpen
	Frames           int64
	InvalidFrames    int64
	DeliveryFailures int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClientFactory replaces the function used to build a Client per attempt.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		m.newClient = f
	}
}

// Manager supervises the single gateway connection. Run drives it from one
// goroutine; Stats may be called concurrently.
type Manager struct {
	cfg       ManagerConfig
	notifier  Notifier
	newClient ClientFactory
	logger    *slog.Logger

	// Owned by the Run goroutine.
	backoff Backoff

	mu    sync.RWMutex
	stats Stats
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, notifier Notifier, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:       cfg,
		notifier:  notifier,
		newClient: NewClient,
		logger:    logger,
		backoff:   NewBackoff(cfg.ReconnectResetWait, cfg.ReconnectMaxWait),
	}
	m.stats.Backoff = m.backoff.Current

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run connects and keeps reconnecting until ctx is done or the gateway
// closes with a terminal code, in which case a *TerminalError is returned.
func (m *Manager) Run(ctx context.Context) error {
	for {
		ev := m.session(ctx)
		if err := ctx.Err(); err != nil {
			m.setState(StateStopped)
			return err
		}

		m.logger.Warn("ws client disconnected",
			"code", ev.Code,
			"reason", ev.Reason,
		)
		m.recordClose(ev)

		plan := planClose(ev, m.backoff)

		// The wait starts at close time, before the status is delivered
		var timer *time.Timer
		if plan.Reconnect {
			m.logger.Info("reconnecting ws client", "in", plan.Delay)
			timer = time.NewTimer(plan.Delay)
		}

		m.notifyStatus(ctx, m.logger, plan.Status)

		m.backoff = plan.Next
		m.setBackoff(m.backoff.Current)

		if !plan.Reconnect {
			m.setState(StateStopped)
			return &TerminalError{Kind: plan.Kind, Code: ev.Code, Reason: ev.Reason}
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			m.setState(StateStopped)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// closePlan is the outcome of a close event.
type closePlan struct {
	Kind      CloseKind
	Status    notify.Status
	Reconnect bool
	Delay     time.Duration // Wait before the next attempt, the pre-close interval
	Next      Backoff       // Backoff to keep after this close
}

// planClose applies the close table to ev without side effects.
func planClose(ev CloseEvent, b Backoff) closePlan {
	kind := ClassifyClose(ev.Code, ev.Reason)

	switch kind {
	case CloseUnauthorized:
		return closePlan{Kind: kind, Status: notify.StatusUnauthorized, Next: b}
	case CloseDuplicate:
		return closePlan{Kind: kind, Status: notify.StatusDuplicateConnection, Next: b}
	case CloseRevoked:
		return closePlan{Kind: kind, Status: notify.StatusRevoked, Next: b}
	case CloseTransient:
		delay, next := b.Next()
		return closePlan{
			Kind:      kind,
			Status:    notify.StatusReconnecting,
			Reconnect: true,
			Delay:     delay,
			Next:      next,
		}
	}

	panic(fmt.Sprintf("gateway: unhandled close kind %d", kind))
}

// session runs one connection attempt to completion and reports how it ended.
func (m *Manager) session(ctx context.Context) CloseEvent {
	id := uuid.NewString()
	logger := m.logger.With("session", id)
	m.beginAttempt(id)

	client := m.newClient(m.cfg.Client, logger)
	if err := client.Connect(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("ws client error", "error", err)
		}
		return CloseEvent{Code: CloseAbnormal, Err: err}
	}

	logger.Info("ws client connected", "url", m.cfg.Client.URL)
	m.backoff = m.backoff.Reset()
	m.markOpen()

	confirm := time.NewTimer(m.cfg.ConnectedNotifyDelay)
	defer confirm.Stop()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateClosing)
			client.Close()
			return CloseEvent{Code: CloseNormal}

		case <-confirm.C:
			// Skip the confirmation if the connection already dropped
			if client.IsConnected() {
				m.notifyStatus(ctx, logger, notify.StatusConnected)
			}

		case msg := <-client.Messages():
			m.handleFrame(ctx, logger, msg.Data)

		case ev := <-client.Closed():
			m.setState(StateClosing)
			m.drain(ctx, logger, client)
			return ev
		}
	}
}

// drain handles frames that were read before the close event was seen.
func (m *Manager) drain(ctx context.Context, logger *slog.Logger, client Client) {
	for {
		select {
		case msg := <-client.Messages():
			m.handleFrame(ctx, logger, msg.Data)
		default:
			return
		}
	}
}

// handleFrame decodes one frame and dispatches on its action. Nothing here
// tears the connection down.
func (m *Manager) handleFrame(ctx context.Context, logger *slog.Logger, data []byte) {
	m.mu.Lock()
	m.stats.Frames++
	m.mu.Unlock()

	in, err := DecodeFrame(data)
	if err != nil {
		m.countInvalid()
		logger.Error("ws client message error", "error", err)
		return
	}

	switch in.Action {
	case ActionEnabled:
		m.notifyStatus(ctx, logger, notify.StatusEnabled)

	case ActionDisabled:
		m.notifyStatus(ctx, logger, notify.StatusDisabled)

	case ActionExecuteWebhook:
		err := m.notifier.Forward(ctx, in.Data)
		switch {
		case err == nil:
		case errors.Is(err, notify.ErrMissingData), errors.Is(err, notify.ErrInvalidData):
			m.countInvalid()
			logger.Error("ws client message error", "action", in.Name, "error", err)
		default:
			m.deliveryFailed(logger, in.Name, err)
		}

	case ActionUnknown:
		m.countInvalid()
		logger.Error("ws client invalid action", "action", in.Name)

	default:
		panic(fmt.Sprintf("gateway: unhandled action %d", in.Action))
	}
}

func (m *Manager) notifyStatus(ctx context.Context, logger *slog.Logger, s notify.Status) {
	if err := m.notifier.Status(ctx, s); err != nil {
		m.deliveryFailed(logger, s.String(), err)
	}
}

func (m *Manager) deliveryFailed(logger *slog.Logger, what string, err error) {
	m.mu.Lock()
	m.stats.DeliveryFailures++
	m.mu.Unlock()

	logger.Error("webhook delivery error", "notification", what, "error", err)
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Manager) beginAttempt(id string) {
	m.mu.Lock()
	m.stats.State = StateConnecting
	m.stats.SessionID = id
	m.stats.Attempts++
	m.stats.ConnectedSince = time.Time{}
	m.mu.Unlock()
}

func (m *Manager) markOpen() {
	m.mu.Lock()
	m.stats.State = StateOpen
	m.stats.ConnectedSince = time.Now()
	m.stats.Backoff = m.backoff.Current
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.stats.State = s
	if s != StateOpen {
		m.stats.ConnectedSince = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Manager) setBackoff(d time.Duration) {
	m.mu.Lock()
	m.stats.Backoff = d
	m.mu.Unlock()
}

func (m *Manager) recordClose(ev CloseEvent) {
	m.mu.Lock()
	m.stats.LastCloseCode = ev.Code
	m.stats.LastCloseReason = ev.Reason
	m.mu.Unlock()
}

func (m *Manager) countInvalid() {
	m.mu.Lock()
	m.stats.InvalidFrames++
	m.mu.Unlock()
}
