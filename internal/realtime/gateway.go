// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"sync"

	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/metrics"
	"github.com/teamup-chat/teamup/internal/models"
)

// Gateway owns the process-wide hub singleton. It is an explicitly
// injected object rather than package-level global state, so tests and
// API-only deployments can run without a hub at all.
type Gateway struct {
	mu  sync.Mutex
	hub *Hub
}

// NewGateway creates a gateway with no hub yet. The hub comes into
// existence on the first EnsureHub call.
func NewGateway() *Gateway {
	return &Gateway{}
}

// EnsureHub returns the existing hub or constructs it exactly once.
// Safe to invoke on every incoming request; the mutex makes concurrent
// first calls race-free. The caller is responsible for driving the
// returned hub's RunWithContext (normally the supervision tree does).
func (g *Gateway) EnsureHub() *Hub {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hub == nil {
		g.hub = NewHub()
		logging.Info().Msg("realtime hub constructed")
	}
	return g.hub
}

// Handle returns the current hub handle without constructing anything.
// The handle is an explicit tagged variant: either initialized with a
// live hub, or uninitialized in a process that never mounted the
// upgrade endpoint.
func (g *Gateway) Handle() HubHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return HubHandle{hub: g.hub}
}

// EmitFromServer fans a persisted message out to the members of its
// room. It is reachable from ordinary request-handling code, outside
// any live connection's handler stack.
//
// With no hub initialized this degrades to a warning and returns. It
// never fails: persistence already succeeded and the caller's HTTP
// response must not depend on live delivery being available.
func (g *Gateway) EmitFromServer(roomID string, msg *models.ChatMessage) {
	handle := g.Handle()
	if !handle.Initialized() {
		metrics.WSEventsDropped.WithLabelValues("hub_uninitialized").Inc()
		logging.Warn().
			Str("room_id", roomID).
			Msg("emit requested but no hub initialized, skipping live delivery")
		return
	}

	event, err := NewEvent(EventMessage, msg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to build server-emitted message event")
		return
	}
	handle.hub.Emit(roomID, event)
}

// HubHandle is the result of asking the gateway for its hub.
type HubHandle struct {
	hub *Hub
}

// Initialized reports whether a hub exists in this process.
func (h HubHandle) Initialized() bool {
	return h.hub != nil
}

// Hub returns the underlying hub, or nil when uninitialized.
func (h HubHandle) Hub() *Hub {
	return h.hub
}
