package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/storage"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.registry.List()),
		"time":     s.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

type devicesResponse struct {
	Devices  []devices.Preset `json:"devices"`
	Defaults []string         `json:"defaults"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, devicesResponse{
		Devices:  s.catalog.List(),
		Defaults: devices.DefaultDeviceIDs,
	})
}

// handlePreferences returns the last launcher selection, falling back to the
// default devices and an empty URL.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	sel := storage.Selection{Devices: devices.DefaultDeviceIDs}
	if s.store != nil {
		stored, err := s.store.LastSelection(r.Context())
		switch {
		case err == nil:
			sel = stored
		case errors.Is(err, storage.ErrNotFound):
		default:
			s.log.Warn("load preferences failed", "error", err)
		}
	}
	if known := s.catalog.Filter(sel.Devices); len(known) > 0 {
		sel.Devices = known
	} else {
		sel.Devices = devices.DefaultDeviceIDs
	}
	respondJSON(w, http.StatusOK, sel)
}

type createSessionRequest struct {
	URL     string      `json:"url"`
	Devices []string    `json:"devices"`
	Mode    mirror.Mode `json:"mode"`
}

type sessionResponse struct {
	Session mirror.Session `json:"session"`
	Channel string         `json:"channel"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	target, err := devices.NormalizeTargetURL(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	ids := s.catalog.Filter(req.Devices)
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("Select at least one device"))
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = mirror.ModeMirror
	}

	session := mirror.Session{
		ID:        ulid.Make().String(),
		URL:       target,
		Devices:   ids,
		Mode:      mode,
		CreatedAt: s.now().UTC(),
	}
	if err := session.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	data, err := json.Marshal(session)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.ephemeral.Set(storage.SessionKey(session.ID), data)

	if s.store != nil {
		if err := s.store.SaveSelection(r.Context(), storage.Selection{URL: target, Devices: ids}); err != nil {
			s.log.Warn("save preferences failed", "error", err)
		}
	}
	metricSessionsCreated.Inc()

	respondJSON(w, http.StatusCreated, sessionResponse{
		Session: session,
		Channel: mirror.ChannelName(s.cfg.ChannelPrefix, session.ID),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	data, ok := s.ephemeral.Get(storage.SessionKey(id))
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	var session mirror.Session
	if err := json.Unmarshal(data, &session); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{
		Session: session,
		Channel: mirror.ChannelName(s.cfg.ChannelPrefix, session.ID),
	})
}

func (s *Server) handleMirrorSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

type canvasTarget struct {
	TargetID string `json:"targetId"`
}

func (s *Server) handleGetCanvasTarget(w http.ResponseWriter, r *http.Request) {
	data, ok := s.ephemeral.Get(storage.CanvasTargetKey)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("no canvas target"))
		return
	}
	respondJSON(w, http.StatusOK, canvasTarget{TargetID: string(data)})
}

func (s *Server) handlePutCanvasTarget(w http.ResponseWriter, r *http.Request) {
	var req canvasTarget
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}
	id := strings.TrimSpace(req.TargetID)
	if id == "" {
		s.ephemeral.Delete(storage.CanvasTargetKey)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.ephemeral.Set(storage.CanvasTargetKey, []byte(id))
	respondJSON(w, http.StatusOK, canvasTarget{TargetID: id})
}
