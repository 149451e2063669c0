// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamup-chat/teamup/internal/auth"
	"github.com/teamup-chat/teamup/internal/config"
	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/realtime"
	"github.com/teamup-chat/teamup/internal/store"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, websocket upgrader (this file)
//   - handlers_helpers.go: shared helper functions
//   - handlers_chat.go: upgrade endpoint, history, presence
//   - handlers_auth.go: login
//   - handlers_health.go: health and readiness endpoints
type Handler struct {
	config     *config.Config
	store      *store.MessageStore
	gateway    *realtime.Gateway
	jwtManager *auth.JWTManager
	startTime  time.Time
}

// NewHandler creates an API handler. jwtManager may be nil when
// authentication is disabled; store may be nil in a delivery-only
// deployment, which disables the history endpoints.
func NewHandler(cfg *config.Config, messageStore *store.MessageStore, gateway *realtime.Gateway, jwtManager *auth.JWTManager) *Handler {
	return &Handler{
		config:     cfg,
		store:      messageStore,
		gateway:    gateway,
		jwtManager: jwtManager,
		startTime:  time.Now(),
	}
}

// getUpgrader builds the websocket upgrader with origin checking and
// the configured handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: h.config.Realtime.HandshakeTimeout,
	}
}

// checkWebSocketOrigin validates upgrade request origins against the
// configured CORS origins. Browser websockets always send Origin;
// requests without one are non-browser clients and pass through to
// token authentication instead.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("websocket connection rejected from unauthorized origin")
	return false
}
