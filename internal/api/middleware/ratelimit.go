// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window
	RequestLimit int
	// WindowSize is the time window for rate limiting
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request (e.g., IP address)
	// If nil, defaults to IP-based rate limiting
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a rate limiting middleware using the httprate library.
// It uses a sliding window counter algorithm.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	retryAfter := int(cfg.WindowSize.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}

// APIRateLimit returns the per-IP limiter for the session API.
func APIRateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return RateLimit(RateLimitConfig{RequestLimit: limit, WindowSize: window})
}

// SessionRateLimit limits per session id path parameter instead of per IP.
// Detection feeds post many batches per second from one address; the limit
// keeps a runaway client from starving the others.
func SessionRateLimit(limit int, window time.Duration, param func(*http.Request) string) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: limit,
		WindowSize:   window,
		KeyFunc: func(r *http.Request) (string, error) {
			return "session:" + param(r), nil
		},
	})
}
