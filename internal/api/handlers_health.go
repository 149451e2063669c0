// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package api

import (
	"net/http"
	"time"
)

// healthStatus is the body of GET /health.
type healthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Realtime      bool   `json:"realtime"`
	Connections   int    `json:"connections"`
	Rooms         int    `json:"rooms"`
	Store         bool   `json:"store"`
}

// HealthLive reports process liveness. It always succeeds while the
// process can serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness to serve chat traffic: the store must
// be open. The hub is optional; an API-only deployment is still ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Message store not ready", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports overall gateway state including realtime counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Store:         h.store != nil,
	}
	if handle := h.gateway.Handle(); handle.Initialized() {
		status.Realtime = true
		status.Connections = handle.Hub().GetClientCount()
		status.Rooms = handle.Hub().RoomCount()
	}

	respondSuccess(w, http.StatusOK, status)
}
