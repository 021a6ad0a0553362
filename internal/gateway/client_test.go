package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return mockWSServerWithRequest(t, func(_ *http.Request, conn *websocket.Conn) {
		handler(conn)
	})
}

// mockWSServerWithRequest is mockWSServer with access to the upgrade request.
func mockWSServerWithRequest(t *testing.T, handler func(*http.Request, *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(server *httptest.Server) ClientConfig {
	return ClientConfig{
		URL:          wsURL(server),
		Token:        "test-token",
		PingInterval: time.Minute,
		PingTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

func waitClosed(t *testing.T, c Client) CloseEvent {
	t.Helper()
	select {
	case ev := <-c.Closed():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
		return CloseEvent{}
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Just keep the connection open
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}

	ev := waitClosed(t, client)
	if ev.Code != CloseNormal {
		t.Errorf("close code = %d, want %d", ev.Code, CloseNormal)
	}
}

func TestClient_SendsTokenHeader(t *testing.T) {
	var got atomic.Value
	server := mockWSServerWithRequest(t, func(r *http.Request, conn *websocket.Conn) {
		got.Store(r.Header.Get(TokenHeader))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for got.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if token, _ := got.Load().(string); token != "test-token" {
		t.Errorf("token header = %q, want %q", token, "test-token")
	}
}

func TestClient_Messages(t *testing.T) {
	testMessages := []string{
		`{"action":"enabled"}`,
		`{"action":"executeWebhook","data":{"content":"hi"}}`,
		`{"action":"disabled"}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		// Keep connection open
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// Collect received messages
	var received []string
	timeout := time.After(500 * time.Millisecond)

	for i := 0; i < len(testMessages); i++ {
		select {
		case msg := <-client.Messages():
			received = append(received, string(msg.Data))
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", len(received), len(testMessages))
		}
	}

	for i, want := range testMessages {
		if received[i] != want {
			t.Errorf("message %d: got %q, want %q", i, received[i], want)
		}
	}
}

func TestClient_CloseFrameFromServer(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		reason string
	}{
		{"unauthorized", websocket.ClosePolicyViolation, "Unauthorized"},
		{"duplicate", websocket.ClosePolicyViolation, "Duplicate connection"},
		{"revoked", websocket.CloseNormalClosure, ""},
		{"going away", websocket.CloseGoingAway, "restart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockWSServer(t, func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"enabled"}`))
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(tt.code, tt.reason),
					time.Now().Add(time.Second),
				)
				time.Sleep(100 * time.Millisecond)
			})
			defer server.Close()

			client := NewClient(testClientConfig(server), nil)
			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			defer client.Close()

			ev := waitClosed(t, client)
			if ev.Code != tt.code {
				t.Errorf("Code = %d, want %d", ev.Code, tt.code)
			}
			if ev.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", ev.Reason, tt.reason)
			}
			if ev.Err != nil {
				t.Errorf("Err = %v, want nil for a close frame", ev.Err)
			}

			// The frame read before the close is still delivered
			select {
			case msg := <-client.Messages():
				if string(msg.Data) != `{"action":"enabled"}` {
					t.Errorf("message = %q", msg.Data)
				}
			default:
				t.Error("frame read before close was lost")
			}

			if client.IsConnected() {
				t.Error("expected IsConnected to return false after close")
			}
		})
	}
}

func TestClient_AbruptCloseIsAbnormal(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Return without a close frame; the deferred Close drops the socket
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ev := waitClosed(t, client)
	if ev.Code != CloseAbnormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseAbnormal)
	}
	if ev.Reason != "" {
		t.Errorf("Reason = %q, want empty", ev.Reason)
	}
	if ev.Err == nil {
		t.Error("Err should carry the transport error")
	}
}

func TestClient_OversizedFrameDropsConnection(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"enabled"}`))
		big := `{"action":"executeWebhook","data":{"content":"` + strings.Repeat("x", 4096) + `"}}`
		conn.WriteMessage(websocket.TextMessage, []byte(big))
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	cfg := testClientConfig(server)
	cfg.MaxMessageSize = 1024

	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ev := waitClosed(t, client)
	if ev.Code != CloseAbnormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseAbnormal)
	}
	if !errors.Is(ev.Err, websocket.ErrReadLimit) {
		t.Errorf("Err = %v, want websocket.ErrReadLimit", ev.Err)
	}

	// Frames within the limit are still delivered
	select {
	case msg := <-client.Messages():
		if string(msg.Data) != `{"action":"enabled"}` {
			t.Errorf("message = %q", msg.Data)
		}
	default:
		t.Error("small frame before the oversized one was lost")
	}
}

func TestClient_CloseAfterServerGone(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitClosed(t, client)

	// The close frame cannot be written; Close still tears down cleanly
	client.Close()
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClient_Terminate(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	client.Terminate()

	ev := waitClosed(t, client)
	if ev.Code != CloseAbnormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseAbnormal)
	}
	if !errors.Is(ev.Err, ErrTerminated) {
		t.Errorf("Err = %v, want ErrTerminated", ev.Err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Terminate")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Never read, so pings are never answered
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := testClientConfig(server)
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 50 * time.Millisecond

	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ev := waitClosed(t, client)
	if ev.Code != CloseAbnormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseAbnormal)
	}
	if !errors.Is(ev.Err, ErrStaleConnection) {
		t.Errorf("Err = %v, want ErrStaleConnection", ev.Err)
	}
}

func TestClient_ConnectFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)
	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should carry the handshake status, got %v", err)
	}
	if client.IsConnected() {
		t.Error("expected IsConnected to return false")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	client := NewClient(ClientConfig{URL: "ws://localhost:12345"}, nil)
	client.Close()

	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect() = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// First close should succeed
	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}

	// Second close should be no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClient_PingHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(testClientConfig(server), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// Give time for ping to be processed
	time.Sleep(200 * time.Millisecond)

	if !client.IsConnected() {
		t.Error("expected client to be connected after ping")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"enabled", ActionEnabled},
		{"disabled", ActionDisabled},
		{"executeWebhook", ActionExecuteWebhook},
		{"Enabled", ActionUnknown},
		{"executewebhook", ActionUnknown},
		{"foo", ActionUnknown},
		{"", ActionUnknown},
	}

	for _, tt := range tests {
		if got := ParseAction(tt.in); got != tt.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		want     Action
		wantName string
		wantData string
		wantErr  bool
	}{
		{name: "enabled", data: `{"action":"enabled"}`, want: ActionEnabled, wantName: "enabled"},
		{name: "with data", data: `{"action":"executeWebhook","data":{"content":"x"}}`, want: ActionExecuteWebhook, wantName: "executeWebhook", wantData: `{"content":"x"}`},
		{name: "unknown action", data: `{"action":"foo"}`, want: ActionUnknown, wantName: "foo"},
		{name: "missing action", data: `{}`, want: ActionUnknown},
		{name: "malformed", data: `{"action":`, wantErr: true},
		{name: "not json", data: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeFrame([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if in.Action != tt.want {
				t.Errorf("Action = %v, want %v", in.Action, tt.want)
			}
			if in.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", in.Name, tt.wantName)
			}
			if string(in.Data) != tt.wantData {
				t.Errorf("Data = %s, want %s", in.Data, tt.wantData)
			}
		})
	}
}

func TestClassifyClose(t *testing.T) {
	tests := []struct {
		code   int
		reason string
		want   CloseKind
	}{
		{1008, "Unauthorized", CloseUnauthorized},
		{1008, "Duplicate connection", CloseDuplicate},
		{1000, "", CloseRevoked},
		{1000, "Unauthorized", CloseRevoked},
		{1008, "", CloseTransient},
		{1008, "Duplicate Connection", CloseTransient},
		{1006, "", CloseTransient},
		{1001, "", CloseTransient},
		{1011, "", CloseTransient},
		{4000, "Unauthorized", CloseTransient},
	}

	for _, tt := range tests {
		got := ClassifyClose(tt.code, tt.reason)
		if got != tt.want {
			t.Errorf("ClassifyClose(%d, %q) = %v, want %v", tt.code, tt.reason, got, tt.want)
		}
		if got.Terminal() != (tt.want != CloseTransient) {
			t.Errorf("ClassifyClose(%d, %q).Terminal() = %v", tt.code, tt.reason, got.Terminal())
		}
	}
}

func TestTerminalError(t *testing.T) {
	err := &TerminalError{Kind: CloseUnauthorized, Code: 1008, Reason: "Unauthorized"}
	want := "gateway closed (unauthorized): code 1008 - Unauthorized"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &TerminalError{Kind: CloseRevoked, Code: 1000}
	want = "gateway closed (revoked): code 1000"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", clientCfg.PingInterval)
	}
	if clientCfg.PingTimeout != 90*time.Second {
		t.Errorf("PingTimeout = %v, want 90s", clientCfg.PingTimeout)
	}
	if clientCfg.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", clientCfg.BufferSize)
	}
	if clientCfg.MaxMessageSize != 1<<20 {
		t.Errorf("MaxMessageSize = %d, want 1MiB", clientCfg.MaxMessageSize)
	}

	mgrCfg := DefaultManagerConfig()
	if mgrCfg.ReconnectResetWait != 5*time.Second {
		t.Errorf("ReconnectResetWait = %v, want 5s", mgrCfg.ReconnectResetWait)
	}
	if mgrCfg.ReconnectMaxWait != 5*time.Minute {
		t.Errorf("ReconnectMaxWait = %v, want 5m", mgrCfg.ReconnectMaxWait)
	}
	if mgrCfg.ConnectedNotifyDelay != time.Second {
		t.Errorf("ConnectedNotifyDelay = %v, want 1s", mgrCfg.ConnectedNotifyDelay)
	}
}
