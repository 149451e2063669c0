// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newSessionTestServer runs a full gateway (hub plus upgrade endpoint)
// and returns the websocket URL a session can dial.
func newSessionTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := setupHub(t)
	server := setupGatewayServer(t, hub)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestSession(t *testing.T, url string) *Session {
	t.Helper()
	session := NewSession(SessionConfig{
		URL:                   url,
		InitialReconnectDelay: 10 * time.Millisecond,
		HandshakeTimeout:      time.Second,
	})
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSessionConfig_Defaults(t *testing.T) {
	session := NewSession(SessionConfig{URL: "ws://example.invalid/ws"})

	if session.cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", session.cfg.MaxReconnectAttempts)
	}
	if session.cfg.InitialReconnectDelay != time.Second {
		t.Errorf("InitialReconnectDelay = %s, want 1s", session.cfg.InitialReconnectDelay)
	}
	if session.cfg.HandshakeTimeout != 20*time.Second {
		t.Errorf("HandshakeTimeout = %s, want 20s", session.cfg.HandshakeTimeout)
	}
}

func TestReconnectBackOff_HonorsConfiguredFloor(t *testing.T) {
	// The default randomization factor is 0.5, so the first delay for a
	// 4s floor lands in [2s, 6s]. The library's own 500ms default would
	// produce at most 750ms, well outside that range.
	bo := newReconnectBackOff(4 * time.Second)

	first := bo.NextBackOff()
	if first < 2*time.Second || first > 6*time.Second {
		t.Errorf("first delay = %s, want within [2s, 6s]", first)
	}
}

func TestSession_ConnectJoinAndMessage(t *testing.T) {
	_, url := newSessionTestServer(t)

	session := newTestSession(t, url)
	connected := make(chan struct{})
	joined := make(chan string, 1)
	messages := make(chan MessagePayload, 1)
	session.SetCallbacks(SessionCallbacks{
		OnConnect:    func() { close(connected) },
		OnRoomJoined: func(roomID string) { joined <- roomID },
		OnMessage:    func(p MessagePayload) { messages <- p },
	})

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitSignal(t, connected, "connect")

	if err := session.JoinRoom("product_42"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	select {
	case roomID := <-joined:
		if roomID != "product_42" {
			t.Errorf("joined room %q, want product_42", roomID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for room-joined")
	}

	// The session's own send comes back as an echo.
	if err := session.SendMessage("product_42", "salut", "A"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	select {
	case payload := <-messages:
		if payload != (MessagePayload{RoomID: "product_42", Text: "salut", SenderID: "A"}) {
			t.Errorf("unexpected payload: %+v", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message echo")
	}
}

func TestSession_TypingRoundTrip(t *testing.T) {
	hub, url := newSessionTestServer(t)

	listener := newTestSession(t, url)
	typing := make(chan string, 1)
	stopTyping := make(chan string, 1)
	listenerJoined := make(chan struct{})
	listener.SetCallbacks(SessionCallbacks{
		OnRoomJoined: func(string) { close(listenerJoined) },
		OnTyping:     func(userID string) { typing <- userID },
		OnStopTyping: func(userID string) { stopTyping <- userID },
	})
	if err := listener.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := listener.JoinRoom("r"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	waitSignal(t, listenerJoined, "listener join")

	typist := newTestSession(t, url)
	typistJoined := make(chan struct{})
	typist.SetCallbacks(SessionCallbacks{
		OnRoomJoined: func(string) { close(typistJoined) },
	})
	if err := typist.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := typist.JoinRoom("r"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	waitSignal(t, typistJoined, "typist join")
	waitFor(t, func() bool { return hub.RoomMemberCount("r") == 2 }, "both members")

	if err := typist.SendTyping("r", "u2"); err != nil {
		t.Fatalf("SendTyping failed: %v", err)
	}
	select {
	case userID := <-typing:
		if userID != "u2" {
			t.Errorf("typing userID = %q, want u2", userID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for user-typing")
	}

	if err := typist.SendStopTyping("r", "u2"); err != nil {
		t.Fatalf("SendStopTyping failed: %v", err)
	}
	select {
	case userID := <-stopTyping:
		if userID != "u2" {
			t.Errorf("stop-typing userID = %q, want u2", userID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for user-stop-typing")
	}
}

func TestSession_ReconnectCeiling(t *testing.T) {
	// Grab an address with nothing listening on it.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	session := newTestSession(t, url)
	var attempts atomic.Int32
	var errs atomic.Int32
	failed := make(chan struct{})
	session.SetCallbacks(SessionCallbacks{
		OnReconnectAttempt: func(int) { attempts.Add(1) },
		OnReconnectError:   func(int, error) { errs.Add(1) },
		OnReconnectFailed:  func() { close(failed) },
	})

	err := session.Connect(context.Background())
	if err == nil {
		t.Fatal("expected initial connect to fail")
	}

	waitSignal(t, failed, "reconnect_failed")

	if got := attempts.Load(); got != 5 {
		t.Errorf("reconnect attempts = %d, want 5", got)
	}
	if got := errs.Load(); got != 5 {
		t.Errorf("reconnect errors = %d, want 5", got)
	}

	// The ceiling is terminal: no further attempts happen on their own.
	before := attempts.Load()
	time.Sleep(100 * time.Millisecond)
	if got := attempts.Load(); got != before {
		t.Errorf("attempts continued after reconnect_failed: %d -> %d", before, got)
	}
}

func TestSession_ConnectErrorFires(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	session := newTestSession(t, url)
	connectErr := make(chan error, 1)
	session.SetCallbacks(SessionCallbacks{
		OnConnectError: func(err error) { connectErr <- err },
	})

	if err := session.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail")
	}
	select {
	case err := <-connectErr:
		if err == nil {
			t.Error("expected non-nil connect error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connect_error")
	}
}

func TestSession_ReconnectsAfterServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	var connCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connCount.Add(1)
		if n == 1 {
			// Server-initiated close on the first connection.
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restarting"),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
			return
		}
		// Keep the second connection open; discard inbound frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	session := newTestSession(t, url)
	disconnected := make(chan DisconnectReason, 1)
	reconnected := make(chan int, 1)
	session.SetCallbacks(SessionCallbacks{
		OnDisconnect: func(reason DisconnectReason) { disconnected <- reason },
		OnReconnect:  func(attempt int) { reconnected <- attempt },
	})

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case reason := <-disconnected:
		if reason != DisconnectServerInitiated {
			t.Errorf("reason = %s, want %s", reason, DisconnectServerInitiated)
		}
		if !reason.RequiresExplicitReconnect() {
			t.Error("server_initiated must require an explicit reconnect")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}

	select {
	case attempt := <-reconnected:
		if attempt < 1 {
			t.Errorf("reconnect attempt = %d, want >= 1", attempt)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reconnect")
	}

	if got := connCount.Load(); got < 2 {
		t.Errorf("server saw %d connections, want at least 2", got)
	}
}

func TestSession_CloseIsClientInitiated(t *testing.T) {
	_, url := newSessionTestServer(t)

	session := newTestSession(t, url)
	connected := make(chan struct{})
	disconnected := make(chan DisconnectReason, 1)
	session.SetCallbacks(SessionCallbacks{
		OnConnect:    func() { close(connected) },
		OnDisconnect: func(reason DisconnectReason) { disconnected <- reason },
	})

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitSignal(t, connected, "connect")

	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case reason := <-disconnected:
		if reason != DisconnectClientInitiated {
			t.Errorf("reason = %s, want %s", reason, DisconnectClientInitiated)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
	if session.IsConnected() {
		t.Error("expected IsConnected to be false after Close")
	}
}

func TestClassifyDisconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DisconnectReason
	}{
		{"normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, DisconnectServerInitiated},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, DisconnectServerInitiated},
		{"service restart", &websocket.CloseError{Code: websocket.CloseServiceRestart}, DisconnectServerInitiated},
		{"abnormal closure", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, DisconnectTransportClosed},
		{"policy violation", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, DisconnectOther},
		{"unexpected eof", io.ErrUnexpectedEOF, DisconnectTransportClosed},
		{"timeout", fakeTimeoutError{}, DisconnectTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDisconnect(tt.err); got != tt.want {
				t.Errorf("classifyDisconnect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDisconnectReason_RequiresExplicitReconnect(t *testing.T) {
	tests := []struct {
		reason DisconnectReason
		want   bool
	}{
		{DisconnectServerInitiated, true},
		{DisconnectTransportClosed, true},
		{DisconnectClientInitiated, false},
		{DisconnectTimeout, false},
		{DisconnectOther, false},
	}
	for _, tt := range tests {
		if got := tt.reason.RequiresExplicitReconnect(); got != tt.want {
			t.Errorf("%s.RequiresExplicitReconnect() = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }
