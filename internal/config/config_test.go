// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecret is long enough to satisfy the 32-character JWT secret floor.
const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := Default()
	cfg.Security.JWTSecret = testSecret
	cfg.Store.InMemory = true
	return cfg
}

func TestDefault_Validates(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestDefault_RealtimeHeartbeat(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/api/v1/ws", cfg.Realtime.Path)
	assert.Equal(t, 25*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongTimeout)
	assert.Equal(t, 20*time.Second, cfg.Realtime.HandshakeTimeout)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }},
		{"pong timeout below ping interval", func(c *Config) { c.Realtime.PongTimeout = c.Realtime.PingInterval / 2 }},
		{"default page above max", func(c *Config) { c.Store.DefaultPageSize = c.Store.MaxPageSize + 1 }},
		{"missing store path", func(c *Config) { c.Store.InMemory = false; c.Store.Path = "" }},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "basic" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty upgrade path", func(c *Config) { c.Realtime.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AuthModeNoneSkipsSecretCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Security.AuthMode = "none"
	cfg.Security.JWTSecret = ""
	assert.NoError(t, cfg.Validate())
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"TEAMUP_SERVER_PORT", "server.port"},
		{"TEAMUP_REALTIME_PING_INTERVAL", "realtime.ping_interval"},
		{"TEAMUP_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"TEAMUP_STORE_IN_MEMORY", "store.in_memory"},
		{"TEAMUP_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, envTransformFunc(tt.env))
		})
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("TEAMUP_SERVER_PORT", "9999")
	t.Setenv("TEAMUP_SECURITY_AUTH_MODE", "none")
	t.Setenv("TEAMUP_STORE_IN_MEMORY", "true")
	t.Setenv("TEAMUP_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Security.AuthMode)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8123
realtime:
  path: /realtime
security:
  auth_mode: none
store:
  in_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "/realtime", cfg.Realtime.Path)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8123
security:
  auth_mode: none
store:
  in_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TEAMUP_SERVER_PORT", "8456")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8456, cfg.Server.Port)
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	t.Setenv("TEAMUP_SECURITY_AUTH_MODE", "none")
	t.Setenv("TEAMUP_STORE_IN_MEMORY", "true")
	t.Setenv("TEAMUP_SECURITY_CORS_ORIGINS", "https://teamup.example, https://staging.teamup.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"https://teamup.example", "https://staging.teamup.example"},
		cfg.Security.CORSOrigins)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("TEAMUP_SECURITY_AUTH_MODE", "none")
	t.Setenv("TEAMUP_STORE_IN_MEMORY", "true")
	t.Setenv("TEAMUP_REALTIME_PONG_TIMEOUT", "1s")

	_, err := Load()
	assert.Error(t, err)
}

func TestServerConfig_Addr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8090}
	assert.Equal(t, "127.0.0.1:8090", cfg.Addr())
}
