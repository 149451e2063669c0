// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package models

import "time"

// ChatMessage is one persisted chat message in a listing conversation.
//
// RoomID is the listing ("product") identifier the conversation belongs
// to. The gateway assigns ID and CreatedAt at persistence time; clients
// supply RoomID, SenderID, and Text.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessagesPage is one page of room history, newest first.
type MessagesPage struct {
	Messages   []ChatMessage  `json:"messages"`
	Pagination PaginationInfo `json:"pagination"`
}
