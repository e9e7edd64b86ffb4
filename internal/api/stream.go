// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/capflow/internal/bus"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

// upgrader returns a websocket upgrader whose origin check follows the CORS
// allowlist. Requests without an Origin header come from non-browser
// clients and are accepted.
func (s *Server) upgrader() websocket.Upgrader {
	allowed := s.cfg.Get().API.AllowedOrigins
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// handleStream pushes the current snapshot and then every later one over a
// websocket until the client goes away or the session is removed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "stream").With().
		Str(log.FieldSessionID, sess.ID).Logger()

	sub, err := s.hub.Bus().Subscribe(r.Context(), bus.SnapshotTopic(sess.ID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = sub.Close() }()

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()
	defer metrics.StreamClientConnected()()

	// Reader: only control frames are expected; any read error ends the stream.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current := sess.Snapshot()
	if err := writeSnapshot(conn, current); err != nil {
		return
	}
	if current.Phase.IsTerminal() {
		closeStream(conn, string(current.Phase))
		return
	}
	last := current.Seq

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-sess.Done():
			closeStream(conn, "session removed")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case msg, open := <-sub.C():
			if !open {
				return
			}
			snap, isSnap := msg.(model.Snapshot)
			if !isSnap || snap.Seq <= last {
				continue
			}
			last = snap.Seq
			if err := writeSnapshot(conn, snap); err != nil {
				logger.Debug().Err(err).Msg("snapshot stream write failed")
				return
			}
			if snap.Phase.IsTerminal() {
				closeStream(conn, string(snap.Phase))
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap model.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(snap)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
}
