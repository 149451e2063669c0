// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package main is the entry point for the TeamUp realtime gateway.
//
// The gateway carries listing-scoped chat between marketplace users: one
// websocket endpoint, rooms addressed in event payloads, message history
// persisted in BadgerDB, and REST endpoints for posting and listing
// messages.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 with defaults, optional YAML, and TEAMUP_ env vars
//  2. Message store: BadgerDB-backed room history
//  3. Gateway: the hub singleton behind EnsureHub
//  4. Authentication: JWT or no-auth mode
//  5. HTTP server: Chi router with websocket upgrade, REST, and /metrics
//  6. Supervisor tree: suture keeps the hub loop and HTTP server alive
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (TEAMUP_ prefix, e.g. TEAMUP_SERVER_PORT)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// For JWT authentication (default):
//   - TEAMUP_SECURITY_JWT_SECRET: 32+ character secret for token signing
//   - TEAMUP_SECURITY_ADMIN_USERNAME / TEAMUP_SECURITY_ADMIN_PASSWORD
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (shutdown timeout)
//   - Closes all websocket clients through the hub
//   - Closes the message store
//
// # Example Usage
//
// Development without authentication:
//
//	export TEAMUP_SECURITY_AUTH_MODE=none
//	export TEAMUP_STORE_IN_MEMORY=true
//	./teamup-gateway
//
// Production with JWT:
//
//	export TEAMUP_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export TEAMUP_SECURITY_ADMIN_USERNAME=admin
//	export TEAMUP_SECURITY_ADMIN_PASSWORD=secure-password
//	export TEAMUP_STORE_PATH=/data/teamup/messages
//	./teamup-gateway
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamup-chat/teamup/internal/api"
	"github.com/teamup-chat/teamup/internal/auth"
	"github.com/teamup-chat/teamup/internal/config"
	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/middleware"
	"github.com/teamup-chat/teamup/internal/realtime"
	"github.com/teamup-chat/teamup/internal/store"
	"github.com/teamup-chat/teamup/internal/supervisor"
	"github.com/teamup-chat/teamup/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("ws_path", cfg.Realtime.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("store_in_memory", cfg.Store.InMemory).
		Msg("Configuration loaded")

	messageStore, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open message store")
	}
	defer func() {
		if err := messageStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message store")
		}
	}()

	var jwtManager *auth.JWTManager
	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("Authentication is DISABLED (auth_mode=none)")
		logging.Warn().Msg("All endpoints are publicly accessible. Use only for development and testing")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (rate_limit_disabled=true)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog so supervisor events land in the same stream.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	gateway := realtime.NewGateway()
	hub := gateway.EnsureHub()

	handler := api.NewHandler(cfg, messageStore, gateway, jwtManager)
	chiMw := api.NewChiMiddleware(api.NewChiMiddlewareConfig(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	))
	authenticator := middleware.NewAuthenticator(&cfg.Security, jwtManager)
	router := api.NewRouter(handler, chiMw, authenticator)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Gateway stopped gracefully")
}
