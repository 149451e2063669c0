// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package api provides the HTTP surface of the gateway: the websocket
// upgrade endpoint, message history, presence, authentication, and
// health endpoints, routed with Chi.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/teamup-chat/teamup/internal/middleware"
)

// Router wires handlers and middleware into the route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authenticator *mw.Authenticator
}

// NewRouter creates a router.
func NewRouter(handler *Handler, chiMw *ChiMiddleware, authenticator *mw.Authenticator) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		authenticator: authenticator,
	}
}

// chiMiddlewareAdapter adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddlewareAdapter(m func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order. CORS must be
	// global to handle OPTIONS preflight.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chiMiddlewareAdapter(mw.PrometheusMetrics))
		r.Use(chiMiddlewareAdapter(router.authenticator.Authenticate))

		// The upgrade path is configurable but always lives under the
		// authenticated group. No trailing slash is appended.
		wsPattern := strings.TrimPrefix(router.handler.config.Realtime.Path, "/api/v1")
		if wsPattern == "" || !strings.HasPrefix(wsPattern, "/") {
			wsPattern = "/ws"
		}
		r.Get(wsPattern, router.handler.WebSocket)

		r.Route("/rooms/{roomID}", func(r chi.Router) {
			r.Post("/messages", router.handler.PostMessage)
			r.Get("/messages", router.handler.ListMessages)
			r.Get("/presence", router.handler.RoomPresence)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
