package handlers

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/services/report"
	"github.com/ternarybob/auspex/internal/session"
)

// ReportHandler serves the PDF analysis report export.
type ReportHandler struct {
	sessions *session.Manager
	reports  *report.Service
	logger   arbor.ILogger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(sessions *session.Manager, reports *report.Service, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{sessions: sessions, reports: reports, logger: logger}
}

// ExportHandler handles GET /api/report
func (h *ReportHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	snap := sess.Supervisor.Snapshot()
	data, err := h.reports.Generate(snap)
	if err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	filename := fmt.Sprintf("%s-analysis.pdf", snap.ActiveTicker)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Report write failed")
	}
}
