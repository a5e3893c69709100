package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/session"
)

// sessionIDHeader names the header dashboard clients use to scope requests.
const sessionIDHeader = "X-Session-ID"

// SessionHandler issues and resolves dashboard sessions.
type SessionHandler struct {
	sessions *session.Manager
	logger   arbor.ILogger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateHandler handles POST /api/session
func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	sess, err := h.sessions.Create()
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID,
	})
}

// requestSessionID pulls the session ID from the header or, for WebSocket
// and direct links, the query string.
func requestSessionID(r *http.Request) string {
	if id := r.Header.Get(sessionIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session")
}

// resolveSession looks up the request's session, writing a 401-style JSON
// error when the ID is missing or expired.
func resolveSession(w http.ResponseWriter, r *http.Request, sessions *session.Manager) (*session.Session, bool) {
	id := requestSessionID(r)
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Missing session ID. Create one via POST /api/session.")
		return nil, false
	}
	sess, ok := sessions.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "Unknown or expired session. Create a new one via POST /api/session.")
		return nil, false
	}
	return sess, true
}
