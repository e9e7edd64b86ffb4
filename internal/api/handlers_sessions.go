// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/capflow/internal/capture/model"
)

type sessionResponse struct {
	ID              string         `json:"id"`
	Flow            model.Flow     `json:"flow"`
	CreatedAt       time.Time      `json:"createdAt"`
	PendingCommands int            `json:"pendingCommands"`
	Snapshot        model.Snapshot `json:"snapshot"`
}

func newSessionResponse(s *Session) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		Flow:            s.Flow,
		CreatedAt:       s.CreatedAt,
		PendingCommands: s.device.Pending(),
		Snapshot:        s.Snapshot(),
	}
}

// sessionEvents maps the event names a client posts to orchestrator
// operations.
var sessionEvents = map[string]func(*Session){
	"loaded":                   func(s *Session) { s.orch.Loaded() },
	"appeared":                 func(s *Session) { s.orch.Appeared() },
	"disappeared":              func(s *Session) { s.orch.Disappeared() },
	"cancel":                   func(s *Session) { s.orch.CancelRequested() },
	"camera_permission_denied": func(s *Session) { s.orch.CameraPermissionDenied() },
	"help_requested":           func(s *Session) { s.orch.HelpRequested() },
	"help_dismissed":           func(s *Session) { s.orch.HelpDismissed() },
	"manual_capture":           func(s *Session) { s.orch.ManualCaptureRequested() },
	"manual_mode":              func(s *Session) { s.orch.ManualModeRequested() },
	"retry":                    func(s *Session) { s.orch.RetryRequested() },
	"camera_ready": func(s *Session) {
		s.device.SetConnected(true)
		s.orch.CameraReady()
	},
}

type eventRequest struct {
	Type string `json:"type"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.hub.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return withDetail(ErrInvalidBody, err)
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.hub.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.hub.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	// A teardown that overran its deadline still removed the session.
	if err := s.hub.Remove(r.Context(), chi.URLParam(r, "id")); errors.Is(err, ErrSessionNotFound) {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	op, known := sessionEvents[req.Type]
	if !known {
		writeError(w, r, ErrInvalidEvent)
		return
	}
	op(sess)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var batch model.DetectionBatch
	if err := decodeJSON(w, r, &batch); err != nil {
		writeError(w, r, err)
		return
	}
	if batch.Seq == 0 {
		writeError(w, r, withDetail(ErrInvalidBody, errors.New("seq must start at 1")))
		return
	}
	sess.orch.HandleDetections(batch)
	w.WriteHeader(http.StatusAccepted)
}
