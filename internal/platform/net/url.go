// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net validates and redacts the outbound URLs capture media is sent to.
package net

import (
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// ParseDirectHTTPURL validates if a string is a safe, direct HTTP/HTTPS URL.
// It enforces:
//   - Scheme must be "http" or "https"
//   - Host must be non-empty
//   - No embedded User/Password credentials
//   - No fragment
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}
	return u, true
}
