// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/teamup-chat/teamup/internal/auth"
	"github.com/teamup-chat/teamup/internal/config"
	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/models"
)

// SessionCookieName is the HTTP-only cookie carrying the session token.
const SessionCookieName = "teamup_session"

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// Authenticator validates credentials on protected routes. With
// auth_mode "none" every request passes through unauthenticated, which
// is intended for development and tests.
type Authenticator struct {
	cfg *config.SecurityConfig
	jwt *auth.JWTManager
}

// NewAuthenticator builds the middleware. jwtManager may be nil when
// auth_mode is "none".
func NewAuthenticator(cfg *config.SecurityConfig, jwtManager *auth.JWTManager) *Authenticator {
	return &Authenticator{cfg: cfg, jwt: jwtManager}
}

// Authenticate enforces a valid token on the wrapped handler. The token
// comes from the Authorization header (Bearer scheme) or the session
// cookie; websocket browser clients cannot set headers, so the cookie
// path covers the upgrade endpoint.
func (a *Authenticator) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.AuthMode == "none" {
			next(w, r)
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, "missing credentials")
			return
		}

		claims, err := a.jwt.ValidateToken(tokenString)
		if err != nil {
			logging.Debug().Err(err).Msg("token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the authenticated claims attached by
// Authenticate, or nil for unauthenticated requests.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	response := &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    "AUTHENTICATION_ERROR",
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("failed to write auth error response")
	}
}
