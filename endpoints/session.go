package endpoints

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/metrics"
)

const (
	startPath   = "/voice/api/session/start/"
	wakePath    = "/voice/api/session/wake/"
	commandPath = "/voice/api/session/command/"
	endPath     = "/voice/api/session/end/"
)

// SessionRequest is the body of wake, command and end calls.
type SessionRequest struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command,omitempty"`
}

// StartSessionHandler opens a new session.
func (s *Server) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := &cache.Session{
		ID:        uuid.NewString(),
		Status:    "listening",
		CreatedAt: s.now(),
	}
	if err := s.store.SaveSession(r.Context(), sess, s.sessionTTL); err != nil {
		log.Printf("Error saving session: %v", err)
		http.Error(w, "Could not start session", http.StatusInternalServerError)
		return
	}
	metrics.RecordSessionEvent("start")
	s.refreshSessionGauge(r.Context())
	log.Printf("Voice session %s started", sess.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"status":     sess.Status,
		"message":    "Voice session started",
	})
}

// WakeSessionHandler records that the wake phrase was heard.
func (s *Server) WakeSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	sess.Status = "awake"
	sess.WokenAt = s.now()
	if err := s.store.SaveSession(r.Context(), sess, s.sessionTTL); err != nil {
		log.Printf("Error saving session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "status": "error"})
		return
	}
	metrics.RecordSessionEvent("wake")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": sess.Status})
}

// CommandHandler stores the latest command relayed by the client.
func (s *Server) CommandHandler(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	sess.LastCommand = cmd
	if err := s.store.SaveSession(r.Context(), sess, s.sessionTTL); err != nil {
		log.Printf("Error saving session %s: %v", sess.ID, err)
		http.Error(w, "Could not record command", http.StatusInternalServerError)
		return
	}
	metrics.RecordSessionEvent("command")
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// EndSessionHandler closes a session. Closing an unknown session succeeds.
func (s *Server) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSession(r.Context(), req.SessionID); err != nil {
		log.Printf("Error deleting session %s: %v", req.SessionID, err)
		http.Error(w, "Could not end session", http.StatusInternalServerError)
		return
	}
	metrics.RecordSessionEvent("end")
	s.refreshSessionGauge(r.Context())
	log.Printf("Voice session %s closed", req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (SessionRequest, bool) {
	var req SessionRequest
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return req, false
	}
	if req.SessionID == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *Server) decodeSession(w http.ResponseWriter, r *http.Request) (*cache.Session, SessionRequest, bool) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return nil, req, false
	}
	sess, err := s.store.LoadSession(r.Context(), req.SessionID)
	if errors.Is(err, cache.ErrNotFound) {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return nil, req, false
	}
	if err != nil {
		log.Printf("Error loading session %s: %v", req.SessionID, err)
		http.Error(w, "Could not load session", http.StatusInternalServerError)
		return nil, req, false
	}
	return sess, req, true
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*cache.Session, bool) {
	sess, _, ok := s.decodeSession(w, r)
	return sess, ok
}
