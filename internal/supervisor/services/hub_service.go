// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package services wraps the gateway's long-running components as
// suture services.
package services

import (
	"context"
)

// ContextHub matches *realtime.Hub's RunWithContext method.
//
// The interface keeps this package free of a realtime import and lets
// tests substitute a fake hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the room hub as a supervised service.
//
// RunWithContext already follows the suture.Service pattern, so this
// wrapper only delegates and provides a name for logging. If the hub
// loop ever panics, suture restarts it here; registered clients are
// dropped and reconnect through the session layer.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "room-hub",
	}
}

// Serve implements suture.Service. It returns ctx.Err() on normal
// shutdown after the hub has closed all clients.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return s.name
}
