package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI page routes (HTML templates)
	mux.HandleFunc("/", s.app.PageHandler.ServePage("index.html", "dashboard"))

	// Static files (CSS, JS, images)
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Sessions
	mux.HandleFunc("/api/session", s.app.SessionHandler.CreateHandler) // POST - create session

	// API routes - Analysis pipeline
	mux.HandleFunc("/api/ticker", s.app.AnalysisHandler.TickerHandler)                       // POST - set ticker input
	mux.HandleFunc("/api/analysis", s.app.AnalysisHandler.StartHandler)                      // POST - start full analysis
	mux.HandleFunc("/api/analysis/key-takeaways", s.app.AnalysisHandler.KeyTakeawaysHandler) // POST - manual key takeaways
	mux.HandleFunc("/api/analysis/options", s.app.AnalysisHandler.OptionsHandler)            // POST - manual options walls

	// API routes - State and result slots
	mux.HandleFunc("/api/state", s.app.StateHandler.SnapshotHandler) // GET - full session snapshot
	mux.HandleFunc("/api/slots", s.app.StateHandler.SlotsHandler)    // GET - all slots
	mux.HandleFunc("/api/slots/", s.app.StateHandler.SlotsHandler)   // GET /{name} - single slot

	// API routes - Chat
	mux.HandleFunc("/api/chat", s.app.ChatHandler.SubmitHandler)          // POST - submit message
	mux.HandleFunc("/api/chat/history", s.app.ChatHandler.HistoryHandler) // GET - transcript

	// API routes - Report export
	mux.HandleFunc("/api/report", s.app.ReportHandler.ExportHandler) // GET - PDF analysis report

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
