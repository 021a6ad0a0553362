package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrTerminated      = errors.New("connection terminated")
)

// Close codes consumed by the close table.
const (
	CloseNormal   = websocket.CloseNormalClosure   // 1000: token revoked/deleted
	ClosePolicy   = websocket.ClosePolicyViolation // 1008: unauthorized or duplicate
	CloseAbnormal = websocket.CloseAbnormalClosure // 1006: transport failure
)

// Close reasons sent by the gateway with ClosePolicy.
const (
	ReasonUnauthorized = "Unauthorized"
	ReasonDuplicate    = "Duplicate connection"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// CloseEvent reports how a connection ended.
type CloseEvent struct {
	Code   int
	Reason string
	Err    error // Transport error that forced termination, nil for close frames
}

func (e CloseEvent) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("code %d", e.Code)
	}
	return fmt.Sprintf("code %d - %s", e.Code, e.Reason)
}

// Frame is the wire shape of a gateway message.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Action is the discriminant of an inbound frame.
type Action int

const (
	ActionUnknown Action = iota
	ActionEnabled
	ActionDisabled
	ActionExecuteWebhook
)

var actionNames = map[string]Action{
	"enabled":        ActionEnabled,
	"disabled":       ActionDisabled,
	"executeWebhook": ActionExecuteWebhook,
}

// ParseAction maps a wire tag to an Action. Matching is exact.
func ParseAction(name string) Action {
	if a, ok := actionNames[name]; ok {
		return a
	}
	return ActionUnknown
}

func (a Action) String() string {
	switch a {
	case ActionEnabled:
		return "enabled"
	case ActionDisabled:
		return "disabled"
	case ActionExecuteWebhook:
		return "executeWebhook"
	default:
		return "unknown"
	}
}

// Inbound is a decoded gateway frame.
type Inbound struct {
	Action Action
	Name   string // Tag as received, kept for logging unknown actions
	Data   json.RawMessage
}

// DecodeFrame parses raw frame bytes into an Inbound.
func DecodeFrame(data []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	return Inbound{
		Action: ParseAction(f.Action),
		Name:   f.Action,
		Data:   f.Data,
	}, nil
}

// CloseKind classifies a close event.
type CloseKind int

const (
	CloseTransient CloseKind = iota
	CloseUnauthorized
	CloseDuplicate
	CloseRevoked
)

func (k CloseKind) String() string {
	switch k {
	case CloseUnauthorized:
		return "unauthorized"
	case CloseDuplicate:
		return "duplicate connection"
	case CloseRevoked:
		return "revoked"
	default:
		return "transient"
	}
}

// Terminal reports whether the kind stops reconnecting.
func (k CloseKind) Terminal() bool {
	return k != CloseTransient
}

// ClassifyClose applies the close table. Reasons are matched exactly.
func ClassifyClose(code int, reason string) CloseKind {
	switch {
	case code == ClosePolicy && reason == ReasonUnauthorized:
		return CloseUnauthorized
	case code == ClosePolicy && reason == ReasonDuplicate:
		return CloseDuplicate
	case code == CloseNormal:
		return CloseRevoked
	default:
		return CloseTransient
	}
}

// TerminalError is returned by Manager.Run after a close code that stops
// reconnection.
type TerminalError struct {
	Kind   CloseKind
	Code   int
	Reason string
}

func (e *TerminalError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway closed (%s): code %d", e.Kind, e.Code)
	}
	return fmt.Sprintf("gateway closed (%s): code %d - %s", e.Kind, e.Code, e.Reason)
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL of the gateway
	Token            string        // Sent as the "token" handshake header
	HandshakeTimeout time.Duration // Dial handshake deadline
	PingInterval     time.Duration // How often the client pings the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for control frames
	BufferSize       int           // Message channel buffer size
	MaxMessageSize   int64         // Largest frame read before the connection is dropped
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
		MaxMessageSize:   1 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client               ClientConfig
	ReconnectResetWait   time.Duration // Backoff reset value, 5s outside tests
	ReconnectMaxWait     time.Duration // Backoff ceiling
	ConnectedNotifyDelay time.Duration // Delay before the "connected" status
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:               DefaultClientConfig(),
		ReconnectResetWait:   DefaultResetWait,
		ReconnectMaxWait:     5 * time.Minute,
		ConnectedNotifyDelay: time.Second,
	}
}

// State is the manager's connection state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
