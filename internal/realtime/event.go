// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package realtime

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Client to server event types
const (
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventMessage    = "message"
	EventTyping     = "typing"
	EventStopTyping = "stop-typing"
)

// Server to client event types
const (
	EventRoomJoined     = "room-joined"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
)

// Event is the wire envelope for all room traffic in both directions.
//
// Data stays raw until the event type is known. Rooms are a payload
// concept, not a path concept; every event travels over the same
// connection.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an envelope with the payload marshaled once, so a
// room fan-out does not re-encode per recipient.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Data: data}, nil
}

// MessagePayload is the body of a chat message event, carried unchanged
// from sender to every room member.
type MessagePayload struct {
	RoomID   string `json:"roomId"`
	Text     string `json:"text"`
	SenderID string `json:"senderId"`
}

// TypingPayload is the body of typing and stop-typing events sent by
// clients.
type TypingPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// RoomJoinedPayload acknowledges a processed join.
type RoomJoinedPayload struct {
	RoomID string `json:"roomId"`
}

// UserTypingPayload is the body of user-typing and user-stop-typing
// events fanned out to the other members of a room.
type UserTypingPayload struct {
	UserID string `json:"userId"`
}
