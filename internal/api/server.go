// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes hosted capture sessions over HTTP: session control,
// the remote device command channel and snapshot streaming.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/capflow/internal/api/middleware"
	"github.com/ManuGH/capflow/internal/infra/evalclient"
)

const (
	// Detection batches arrive at frame rate; anything above this per
	// session is a misbehaving client.
	detectionRateLimit  = 120
	detectionRateWindow = time.Second

	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// Breaker is the read side of an outbound circuit breaker.
type Breaker interface {
	State() evalclient.State
}

// ServerOptions wires a Server.
type ServerOptions struct {
	Config  ConfigSource
	Hub     *Hub
	Version string
	// Breakers are reported by /healthz, keyed by component.
	Breakers map[string]Breaker
}

// Server is the HTTP surface of the daemon.
type Server struct {
	cfg      ConfigSource
	hub      *Hub
	version  string
	breakers map[string]Breaker
	started  time.Time
}

// NewServer returns a Server for the hub.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		cfg:      opts.Config,
		hub:      opts.Hub,
		version:  opts.Version,
		breakers: opts.Breakers,
		started:  time.Now(),
	}
}

// Hub returns the session hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the router. The ingress stack is fixed at build time;
// authentication reads the current configuration on every request.
func (s *Server) Handler() http.Handler {
	cfg := s.cfg.Get()
	stack := middleware.StackConfig{
		EnableCORS:            len(cfg.API.AllowedOrigins) > 0,
		AllowedOrigins:        cfg.API.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		RateLimit:             cfg.API.RateLimit,
		RateWindow:            cfg.API.RateWindow,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.handleHealth)
	r.Get("/openapi.yaml", handleOpenAPI)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authed := middleware.TokenAuth(s.authSettings, false)
	r.Route("/v1/sessions", func(r chi.Router) {
		r.With(authed).Post("/", s.handleCreateSession)
		r.With(authed).Get("/", s.handleListSessions)
		r.Route("/{id}", func(r chi.Router) {
			// Browsers cannot set headers on a websocket handshake.
			r.With(middleware.TokenAuth(s.authSettings, true)).Get("/stream", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(authed)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/snapshot", s.handleSnapshot)
				r.Post("/events", s.handleEvent)
				r.With(middleware.SessionRateLimit(detectionRateLimit, detectionRateWindow, sessionParam)).
					Post("/detections", s.handleDetections)
				r.Get("/commands", s.handleNextCommand)
				r.Post("/commands/{cid}/reply", s.handleCommandReply)
				r.Post("/commands/{cid}/media", s.handleCommandMedia)
			})
		})
	})
	return r
}

func (s *Server) authSettings() middleware.AuthSettings {
	api := s.cfg.Get().API
	return middleware.AuthSettings{Token: api.APIToken, Anonymous: api.AuthAnonymous}
}

func sessionParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

type healthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Uptime   string            `json:"uptime"`
	Sessions int               `json:"sessions"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// handleHealth reports liveness. A breaker that is not closed degrades the
// status without failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Sessions: s.hub.Len(),
	}
	if len(s.breakers) > 0 {
		resp.Breakers = make(map[string]string, len(s.breakers))
		for name, b := range s.breakers {
			st := b.State()
			resp.Breakers[name] = st.String()
			if st != evalclient.StateClosed {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
