// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package config loads and validates gateway configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority, TEAMUP_ prefix).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the realtime gateway.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Security SecurityConfig `koanf:"security"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RealtimeConfig holds the websocket hub and upgrade-endpoint settings.
//
// PingInterval and PongTimeout implement the heartbeat: the server pings
// every PingInterval and presumes the connection dead after PongTimeout
// of silence. HandshakeTimeout bounds the upgrade itself.
type RealtimeConfig struct {
	// Path is the single upgrade endpoint shared by all rooms. Rooms are
	// a payload-level concept, never part of the path. No trailing slash
	// is appended.
	Path             string        `koanf:"path" validate:"required"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	PongTimeout      time.Duration `koanf:"pong_timeout"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// MaxMessageSize caps a single inbound frame in bytes.
	MaxMessageSize int64 `koanf:"max_message_size"`

	// SendBuffer is the per-connection outbound queue length. A client
	// that cannot drain this many events is presumed stuck and dropped.
	SendBuffer int `koanf:"send_buffer"`

	// InboundRate / InboundBurst bound the per-connection inbound event
	// rate (events per second). Excess events are dropped, not fatal:
	// typing signals are bursty and lossy by design.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	// AuthMode selects the authentication scheme: "jwt" or "none".
	// "none" is intended for development and tests only.
	AuthMode string `koanf:"auth_mode" validate:"oneof=jwt none"`

	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// StoreConfig holds message-history persistence settings.
type StoreConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence (tests, ephemeral
	// deployments).
	InMemory bool `koanf:"in_memory"`

	// DefaultPageSize / MaxPageSize bound history pagination.
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	if c.Security.AuthMode == "jwt" {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters when auth_mode=jwt")
		}
	}

	if c.Realtime.PongTimeout <= c.Realtime.PingInterval {
		return fmt.Errorf("realtime.pong_timeout (%s) must exceed realtime.ping_interval (%s)",
			c.Realtime.PongTimeout, c.Realtime.PingInterval)
	}

	if c.Store.DefaultPageSize > c.Store.MaxPageSize {
		return fmt.Errorf("store.default_page_size (%d) must not exceed store.max_page_size (%d)",
			c.Store.DefaultPageSize, c.Store.MaxPageSize)
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}

	return nil
}
