package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/handlers"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/internal/polygon"
	"github.com/ternarybob/auspex/internal/services/analysis"
	"github.com/ternarybob/auspex/internal/services/definitions"
	"github.com/ternarybob/auspex/internal/services/events"
	"github.com/ternarybob/auspex/internal/services/llm"
	"github.com/ternarybob/auspex/internal/services/marketdata"
	"github.com/ternarybob/auspex/internal/services/report"
	"github.com/ternarybob/auspex/internal/session"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Shared services
	EventService       interfaces.EventService
	PolygonClient      *polygon.Client
	MarketDataService  interfaces.MarketDataService
	DefinitionsService *definitions.Service
	LLMFactory         *llm.ProviderFactory
	AnalysisService    interfaces.AnalysisService
	ReportService      *report.Service
	SessionManager     *session.Manager

	// HTTP handlers
	SessionHandler  *handlers.SessionHandler
	AnalysisHandler *handlers.AnalysisHandler
	StateHandler    *handlers.StateHandler
	ChatHandler     *handlers.ChatHandler
	ReportHandler   *handlers.ReportHandler
	StatusHandler   *handlers.StatusHandler
	PageHandler     *handlers.PageHandler
	APIHandler      *handlers.APIHandler
	WSHandler       *handlers.WebSocketHandler
}

// New wires the application from configuration: clients, façade services,
// the session manager with its per-session supervisor factory, and the
// HTTP handlers.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	// Application bus carries session lifecycle events; each session gets
	// its own bus for pipeline traffic.
	a.EventService = events.NewService(logger)

	polygonOpts := []polygon.ClientOption{polygon.WithLogger(logger)}
	if config.Polygon.BaseURL != "" {
		polygonOpts = append(polygonOpts, polygon.WithBaseURL(config.Polygon.BaseURL))
	}
	if interval, err := time.ParseDuration(config.Polygon.RateLimit); err == nil && interval > 0 {
		polygonOpts = append(polygonOpts, polygon.WithRateInterval(interval))
	}
	a.PolygonClient = polygon.NewClient(config.Polygon.APIKey, polygonOpts...)
	a.MarketDataService = marketdata.NewService(a.PolygonClient, logger)

	defs, err := definitions.NewService(&config.Definitions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt definitions: %w", err)
	}
	a.DefinitionsService = defs

	a.LLMFactory = llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)
	a.AnalysisService = analysis.NewService(a.LLMFactory, defs, &config.LLM, logger)
	a.ReportService = report.NewService(logger)

	factory := func() (*pipeline.Supervisor, interfaces.EventService) {
		bus := events.NewService(logger)
		sup := pipeline.NewSupervisor(a.MarketDataService, a.AnalysisService, bus, &config.Pipeline, logger)
		return sup, bus
	}
	a.SessionManager = session.NewManager(&config.Sessions, factory, a.EventService, logger)

	a.SessionHandler = handlers.NewSessionHandler(a.SessionManager, logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.SessionManager, logger)
	a.StateHandler = handlers.NewStateHandler(a.SessionManager, logger)
	a.ChatHandler = handlers.NewChatHandler(a.SessionManager, logger)
	a.ReportHandler = handlers.NewReportHandler(a.SessionManager, a.ReportService, logger)
	a.StatusHandler = handlers.NewStatusHandler(a.SessionManager, config, logger)
	a.PageHandler = handlers.NewPageHandler(logger, config.Logging.ClientDebug)
	a.APIHandler = handlers.NewAPIHandler(logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.SessionManager, &config.WebSocket, logger)

	return a, nil
}

// Start launches the background workers: the session janitor.
func (a *App) Start() error {
	if err := a.SessionManager.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}
	return nil
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close(ctx context.Context) error {
	a.SessionManager.Stop()

	if err := a.LLMFactory.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("LLM factory close failed")
	}
	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
