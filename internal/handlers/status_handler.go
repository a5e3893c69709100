package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/session"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	sessions  *session.Manager
	config    *common.Config
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(sessions *session.Manager, config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		sessions:  sessions,
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"application":      "auspex",
		"version":          common.GetFullVersion(),
		"environment":      h.config.Environment,
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"sessions":         h.sessions.Count(),
		"default_ticker":   h.config.Pipeline.DefaultTicker,
		"default_provider": h.config.LLM.DefaultProvider,
	})
}
