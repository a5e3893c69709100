package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/session"
)

// StateHandler serves pipeline state snapshots and result slots.
type StateHandler struct {
	sessions *session.Manager
	logger   arbor.ILogger
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(sessions *session.Manager, logger arbor.ILogger) *StateHandler {
	return &StateHandler{sessions: sessions, logger: logger}
}

// SnapshotHandler handles GET /api/state
func (h *StateHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, sess.Supervisor.Snapshot())
}

// SlotsHandler handles GET /api/slots and GET /api/slots/{name}. Slots
// always serve valid JSON: genuine results pass through verbatim and
// every other state serves its sentinel document.
func (h *StateHandler) SlotsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	slots := sess.Supervisor.Snapshot().Slots

	name := strings.TrimPrefix(r.URL.Path, "/api/slots")
	name = strings.Trim(name, "/")
	if name == "" {
		WriteJSON(w, http.StatusOK, rawSlots(slots))
		return
	}

	payload, found := slots[name]
	if !found {
		WriteError(w, http.StatusNotFound, "Unknown slot: "+name)
		return
	}
	WriteRawJSON(w, http.StatusOK, payload)
}

// rawSlots re-wraps serialized slot payloads so the combined document
// nests them as JSON rather than quoted strings.
func rawSlots(slots map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(slots))
	for name, payload := range slots {
		out[name] = jsonRaw(payload)
	}
	return out
}

type jsonRaw string

func (r jsonRaw) MarshalJSON() ([]byte, error) { return []byte(r), nil }
