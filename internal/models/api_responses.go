// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package models defines the shared data structures of the gateway: the
// API response envelope and the chat message record.
package models

import "time"

// APIResponse is the uniform envelope for all API responses.
//
// Example success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Example error:
//
//	{"status": "error", "data": null,
//	 "error": {"code": "VALIDATION_ERROR", "message": "..."},
//	 "metadata": {"timestamp": "..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, NOT_FOUND,
// STORE_ERROR, SERVICE_UNAVAILABLE, METHOD_NOT_ALLOWED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginationInfo carries cursor pagination metadata for history listings.
// Cursors are opaque to clients; an empty NextCursor means the listing is
// exhausted.
type PaginationInfo struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}
