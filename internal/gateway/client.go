package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TokenHeader is the handshake header carrying the gateway token.
const TokenHeader = "token"

// Client represents a single WebSocket connection to the gateway.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection with a normal close frame.
	Close() error

	// Terminate drops the connection without a close handshake.
	Terminate()

	// Messages returns a channel of raw frames.
	// Each message includes a local timestamp for when it was received.
	Messages() <-chan TimestampedMessage

	// Closed delivers exactly one CloseEvent once the connection has ended.
	// All frames read before the close are already on Messages.
	Closed() <-chan CloseEvent

	// IsConnected returns current connection state.
	IsConnected() bool
}

// ClientFactory builds a Client for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan TimestampedMessage
	closed   chan CloseEvent
	done     chan struct{} // Closed by Close
	ended    chan struct{} // Closed once the read loop has finished

	closeOnce  sync.Once
	finishOnce sync.Once

	// State
	mu         sync.RWMutex
	connected  bool
	lastPingAt time.Time
	shutdown   bool
	termErr    error // Why Terminate was called, reported in the CloseEvent
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultClientConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		closed:   make(chan CloseEvent, 1),
		done:     make(chan struct{}),
		ended:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set(TokenHeader, c.cfg.Token)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial gateway: %w", err)
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	// Server pings are answered with a pong and count as liveness
	conn.SetPingHandler(func(data string) error {
		c.touch()

		err := conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(c.cfg.WriteTimeout),
		)
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.shutdown = true
		c.connected = false
		conn := c.conn
		c.mu.Unlock()

		close(c.done)

		if conn != nil {
			if werr := conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			); werr != nil {
				c.logger.Debug("failed to send close frame", "error", werr)
			}
			err = conn.Close()
		}
	})
	return err
}

// Terminate closes the network connection without sending a close frame.
// The read loop then reports the close.
func (c *client) Terminate() {
	c.terminate(ErrTerminated)
}

func (c *client) terminate(cause error) {
	c.mu.Lock()
	if c.termErr == nil {
		c.termErr = cause
	}
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Closed returns the close event channel.
func (c *client) Closed() <-chan CloseEvent {
	return c.closed
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// readLoop reads frames until the connection ends, then reports the close.
func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			c.finish(c.closeEventFor(err))
			return
		}

		c.touch()

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			c.finish(CloseEvent{Code: CloseNormal})
			return
		}
	}
}

// closeEventFor converts a read error into a CloseEvent. Anything other than
// a close frame from the peer is a transport error and drops the socket.
func (c *client) closeEventFor(err error) CloseEvent {
	c.mu.RLock()
	termErr := c.termErr
	shutdown := c.shutdown
	c.mu.RUnlock()

	if termErr != nil {
		return CloseEvent{Code: CloseAbnormal, Err: termErr}
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != CloseAbnormal {
		return CloseEvent{Code: ce.Code, Reason: ce.Text}
	}

	if shutdown {
		return CloseEvent{Code: CloseNormal}
	}

	c.logger.Error("ws client error", "error", err)
	c.terminate(err)
	return CloseEvent{Code: CloseAbnormal, Err: err}
}

func (c *client) finish(ev CloseEvent) {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		c.closed <- ev
		close(c.ended)
	})
}

// heartbeatLoop monitors for stale connections.
func (c *client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.ended:
			return
		case <-ticker.C:
			if !c.IsConnected() {
				return
			}

			c.mu.RLock()
			conn := c.conn
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if c.cfg.PingTimeout > 0 && time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.terminate(ErrStaleConnection)
				return
			}

			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
