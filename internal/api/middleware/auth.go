// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ManuGH/capflow/internal/log"
)

// HeaderAPIToken is the token header accepted next to Authorization: Bearer.
const HeaderAPIToken = "X-API-Token"

// AuthSettings is read on every request so a config reload takes effect
// without restarting the server.
type AuthSettings struct {
	Token     string
	Anonymous bool
}

// TokenAuth enforces the API token. Without a configured token it fails
// closed unless anonymous access is enabled. allowQuery also accepts
// ?token= for clients that cannot set headers (browser websockets).
func TokenAuth(settings func() AuthSettings, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := settings()
			logger := log.WithComponentFromContext(r.Context(), "auth")
			if s.Token == "" {
				if s.Anonymous {
					next.ServeHTTP(w, r)
					return
				}
				logger.Error().Str("event", "auth.fail_closed").Msg("CAPFLOW_API_TOKEN not set and anonymous access disabled; denying request")
				unauthorized(w)
				return
			}
			got := extractToken(r, allowQuery)
			if got == "" {
				logger.Warn().Str("event", "auth.missing_token").Msg("api token missing")
				unauthorized(w)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.Token)) != 1 {
				logger.Warn().Str("event", "auth.invalid_token").Msg("invalid api token")
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if t := r.Header.Get(HeaderAPIToken); t != "" {
		return t
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
