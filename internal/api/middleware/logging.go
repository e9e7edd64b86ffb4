// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/capflow/internal/log"
)

// AccessLog writes one structured line per request. Successful polls and
// detection posts log at debug to keep the stream readable.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)

		logger := log.WithComponentFromContext(r.Context(), "http")
		ev := logger.Info()
		switch {
		case sw.statusCode >= 500:
			ev = logger.Error()
		case sw.statusCode >= 400:
			ev = logger.Warn()
		case r.Method == http.MethodGet || r.Method == http.MethodHead:
			ev = logger.Debug()
		}
		traceID, _ := ExtractTraceContext(r)
		ev.Str("event", "http.request").
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Int("status", sw.statusCode).
			Int("bytes", sw.bytesWritten).
			Dur("duration", time.Since(start)).
			Str(log.FieldTraceID, traceID).
			Msg("request served")
	})
}
