package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/archive"
	sessionid "github.com/codeecho/codeecho/internal/id/uuid"
)

// textPreviewLimit caps the prompt text echoed in analyze responses; the
// full document stays available on the session endpoints.
const textPreviewLimit = 1000

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	SessionID string                `json:"session_id"`
	Status    string                `json:"status"`
	Analysis  analysis.SignalBundle `json:"analysis"`
	Prompts   promptPreviews        `json:"prompts"`
}

type promptPreviews struct {
	TextPreview string          `json:"text_preview"`
	JSONPreview json.RawMessage `json:"json_preview"`
}

type sessionResponse struct {
	SessionID string          `json:"session_id"`
	URL       string          `json:"url"`
	CreatedAt time.Time       `json:"created_at"`
	TextDoc   string          `json:"text_doc"`
	JSONDoc   json.RawMessage `json:"json_doc"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	session, err := s.runner.Run(r.Context(), req.URL)
	if err != nil {
		s.writeRunError(w, req.URL, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		SessionID: session.ID,
		Status:    "success",
		Analysis:  session.Record.Signals,
		Prompts: promptPreviews{
			TextPreview: truncate(session.TextDoc, textPreviewLimit),
			JSONPreview: json.RawMessage(session.JSONDoc),
		},
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	// A malformed id cannot name a stored session; skip the lookup.
	if err := sessionid.Validate(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	session, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, analysis.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID,
		URL:       session.Record.URL,
		CreatedAt: session.CreatedAt,
		TextDoc:   session.TextDoc,
		JSONDoc:   json.RawMessage(session.JSONDoc),
	})
}

func (s *Server) downloadSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if err := sessionid.Validate(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	session, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, analysis.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	payload, err := archive.Build(session)
	if err != nil {
		s.logger.Error("archive build failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive build failed")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename(session.ID)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Error("archive write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// writeRunError maps pipeline failures to HTTP statuses: bad input is the
// caller's fault, an unreachable site is the upstream's.
func (s *Server) writeRunError(w http.ResponseWriter, rawURL string, err error) {
	switch {
	case analysis.FetchErrorIs(err, analysis.FetchInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case analysis.FetchErrorIs(err, analysis.FetchUnreachable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("analysis failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

// truncate shortens s to limit characters, marking the cut so a reader
// knows the preview is partial. Counting runes keeps multi-byte text intact.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}
