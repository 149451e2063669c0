// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/middleware"
	"github.com/teamup-chat/teamup/internal/realtime"
	"github.com/teamup-chat/teamup/internal/store"
)

// WebSocket handles upgrade requests on the single shared endpoint.
// Rooms are joined over the connection afterwards, never via the path.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	handle := h.gateway.Handle()
	if !handle.Initialized() {
		logging.Warn().Msg("websocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime service unavailable", nil)
		return
	}

	userID := h.requestUserID(r)

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error; the client retries,
		// the server never does.
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	hub := handle.Hub()
	client := realtime.NewClient(hub, conn, userID, &h.config.Realtime)
	hub.Register <- client
	client.Start()
}

// requestUserID resolves the caller's identity: authenticated claims
// when auth is on, the user query parameter otherwise.
func (h *Handler) requestUserID(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return r.URL.Query().Get("user")
}

// postMessageRequest is the body of POST /rooms/{roomID}/messages.
type postMessageRequest struct {
	SenderID string `json:"senderId" validate:"required,max=64"`
	Text     string `json:"text" validate:"required,max=2000"`
}

// PostMessage persists a message and then notifies live room members.
// Persistence must succeed; live delivery is best-effort and never
// fails the request.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Message store unavailable", nil)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Room identifier is required", nil)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	msg, err := h.store.Append(r.Context(), roomID, req.SenderID, req.Text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to persist message", err)
		return
	}

	// Saved first, delivered second. With no hub in this process the
	// emit degrades to a warning and the response is still a success.
	h.gateway.EmitFromServer(roomID, msg)

	respondSuccess(w, http.StatusCreated, msg)
}

// ListMessages returns one page of room history, newest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Message store unavailable", nil)
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Room identifier is required", nil)
		return
	}

	page, err := h.store.List(r.Context(), roomID, store.ListOptions{
		Limit:  getIntParam(r, "limit", 0),
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			respondError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load messages", err)
		return
	}

	respondSuccess(w, http.StatusOK, page)
}

// roomPresence is the response of GET /rooms/{roomID}/presence.
type roomPresence struct {
	RoomID  string `json:"room_id"`
	Members int    `json:"members"`
	Live    bool   `json:"live"`
}

// RoomPresence reports how many connections are currently subscribed
// to a room. Without a hub the room has no live members by definition.
func (h *Handler) RoomPresence(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Room identifier is required", nil)
		return
	}

	presence := roomPresence{RoomID: roomID}
	if handle := h.gateway.Handle(); handle.Initialized() {
		presence.Members = handle.Hub().RoomMemberCount(roomID)
		presence.Live = true
	}

	respondSuccess(w, http.StatusOK, presence)
}
