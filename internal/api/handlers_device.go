// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/capflow/internal/infra/remote"
)

type replyRequest struct {
	Error string `json:"error,omitempty"`
}

// handleNextCommand long-polls the session's device queue. The optional
// wait query parameter shortens the configured maximum.
func (s *Server) handleNextCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	wait := s.cfg.Get().API.CommandWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, r, withDetail(ErrInvalidBody, errors.New("wait must be a non-negative duration")))
			return
		}
		if d < wait {
			wait = d
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	cmd, got, err := sess.device.Next(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !got {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// handleCommandReply acknowledges a command without media, optionally with
// an error code.
func (s *Server) handleCommandReply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req replyRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := sess.device.Complete(chi.URLParam(r, "cid"), remote.Reply{Error: req.Error}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommandMedia fulfils a capture command with the raw media body.
func (s *Server) handleCommandMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	limit := s.cfg.Get().API.MaxMediaBytes
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, ErrMediaTooLarge)
			return
		}
		writeError(w, r, withDetail(ErrInvalidBody, err))
		return
	}
	if len(data) == 0 {
		writeError(w, r, withDetail(ErrInvalidBody, errors.New("empty media")))
		return
	}
	if err := sess.device.Complete(chi.URLParam(r, "cid"), remote.Reply{Data: data}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
