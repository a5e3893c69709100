package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/session"
)

// AnalysisHandler exposes the pipeline triggers: ticker input, automated
// full analysis, and the two manual analyses.
type AnalysisHandler struct {
	sessions *session.Manager
	logger   arbor.ILogger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(sessions *session.Manager, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{sessions: sessions, logger: logger}
}

type tickerRequest struct {
	Ticker string `json:"ticker"`
}

// TickerHandler handles POST /api/ticker
func (h *AnalysisHandler) TickerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req tickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess.Supervisor.SetTicker(req.Ticker)
	WriteJSON(w, http.StatusOK, sess.Supervisor.Snapshot())
}

// StartHandler handles POST /api/analysis
func (h *AnalysisHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req tickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Ticker != "" {
		sess.Supervisor.SetTicker(req.Ticker)
	}

	if err := sess.Supervisor.StartAnalysis(); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("Analysis trigger refused")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Full analysis started")
}

// KeyTakeawaysHandler handles POST /api/analysis/key-takeaways
func (h *AnalysisHandler) KeyTakeawaysHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.Supervisor.GenerateKeyTakeaways(); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("Key takeaways trigger refused")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Key takeaways analysis started")
}

// OptionsHandler handles POST /api/analysis/options
func (h *AnalysisHandler) OptionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.Supervisor.AnalyzeOptions(); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("Options analysis trigger refused")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Options wall analysis started")
}
