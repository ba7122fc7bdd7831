package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
)

type createSessionRequest struct {
	Profile string `json:"profile"`
}

type createSessionResponse struct {
	SessionInfo
	Settings settings.Settings `json:"settings"`
}

type captionsRequest struct {
	Segments []string `json:"segments"`
	Text     string   `json:"text"`
}

type textRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Source string `json:"source"`
}

type playbackRequest struct {
	Paused    *bool `json:"paused"`
	AdPlaying *bool `json:"ad_playing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":       true,
		"sessions": s.registry.Len(),
	}
	if s.nextSweep != nil {
		if next := s.nextSweep(); !next.IsZero() {
			resp["next_sweep"] = next.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// An empty body creates a session for the default profile.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	info, st, err := s.registry.Create(r.Context(), strings.TrimSpace(req.Profile))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionInfo: info, Settings: st})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(w, r)
	if !ok {
		return
	}
	status, err := ls.session.Status()
	if err != nil {
		writeError(w, http.StatusGone, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": s.registry.describe(ls),
		"status":  status,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req captionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := req.Text
	if len(req.Segments) > 0 {
		text = subtitle.JoinSegments(req.Segments)
	}
	accepted := ls.feed.Push(text)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (s *Server) handleSessionTranslate(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	ls.session.RequestTranslation(text)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req playbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Paused == nil && req.AdPlaying == nil {
		writeError(w, http.StatusBadRequest, "paused or ad_playing is required")
		return
	}
	if req.Paused != nil {
		ls.session.SetPaused(*req.Paused)
	}
	if req.AdPlaying != nil {
		ls.session.SetAdPlaying(*req.AdPlaying)
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.Settings(r.Context(), r.URL.Query().Get("profile"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !settings.IsKnownKey(key) {
		writeError(w, http.StatusNotFound, "unknown setting: "+key)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := s.registry.ApplySetting(r.Context(), r.URL.Query().Get("profile"), key, json.RawMessage(body))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, ErrNoSettingsStore):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, settings.ErrUnknownKey):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleTranslate is a one-shot translation outside any session.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	target := req.Target
	if target == "" {
		target = s.defaultTarget
	}
	if err := settings.ValidateLanguage(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	source := req.Source
	if source == "" {
		source = s.sourceLang
	}

	res, err := s.translator.Translate(r.Context(), provider.Request{
		Text:       text,
		SourceLang: source,
		TargetLang: target,
	})
	if err != nil {
		writeError(w, providerStatus(err), err.Error())
		return
	}
	sourceLang := res.SourceLang
	if sourceLang == "" {
		sourceLang = provider.DetectLanguage(text)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"text":        text,
		"translated":  res.Text,
		"source_lang": sourceLang,
	})
}

func providerStatus(err error) int {
	switch {
	case provider.IsErrorType(err, provider.ErrValidation):
		return http.StatusBadRequest
	case provider.IsErrorType(err, provider.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, err := s.registry.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ls, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
