package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/internal/services/events"
	"github.com/ternarybob/auspex/internal/services/report"
	"github.com/ternarybob/auspex/internal/session"
	"github.com/ternarybob/auspex/pkg/models"
)

// stubMarketData implements interfaces.MarketDataService for testing
type stubMarketData struct {
	fetchFunc func(ctx context.Context, ticker string) (*interfaces.FetchResult, error)
}

func (s *stubMarketData) FetchStockData(ctx context.Context, ticker string) (*interfaces.FetchResult, error) {
	if s.fetchFunc != nil {
		return s.fetchFunc(ctx, ticker)
	}
	return &interfaces.FetchResult{
		MarketStatusJSON:  `{"market":"open"}`,
		StockSnapshotJSON: `{"ticker":"` + ticker + `","currentPrice":100,"prevDay":{"h":110,"l":90,"c":100}}`,
		StandardTAsJSON:   `{"rsi":55}`,
		OptionsChainJSON:  `{"results":[]}`,
		RequestLogJSON:    `{"url":"/test"}`,
		ResponseLogJSON:   `{"status":200}`,
	}, nil
}

// stubAnalysis implements interfaces.AnalysisService for testing
type stubAnalysis struct {
	chatFunc func(ctx context.Context, input interfaces.ChatTurnInput) (string, error)
}

func (s *stubAnalysis) AnalyzeTA(ctx context.Context, input interfaces.PivotInput) (*models.PivotLevels, error) {
	return &models.PivotLevels{PivotPoint: 100}, nil
}

func (s *stubAnalysis) GenerateKeyTakeaways(ctx context.Context, input interfaces.TakeawaysInput) (*models.KeyTakeaways, error) {
	neutral := models.Takeaway{Takeaway: "Flat.", Sentiment: "neutral"}
	return &models.KeyTakeaways{PriceAction: neutral, Trend: neutral, Volatility: neutral, Momentum: neutral, Patterns: neutral}, nil
}

func (s *stubAnalysis) AnalyzeOptionsChain(ctx context.Context, input interfaces.OptionsAnalysisInput) (*models.OptionsWalls, error) {
	return &models.OptionsWalls{}, nil
}

func (s *stubAnalysis) ChatTurn(ctx context.Context, input interfaces.ChatTurnInput) (string, error) {
	if s.chatFunc != nil {
		return s.chatFunc(ctx, input)
	}
	return "Looks **bullish** to me.", nil
}

func testSessions(t *testing.T, market interfaces.MarketDataService, analysis interfaces.AnalysisService) *session.Manager {
	t.Helper()
	if market == nil {
		market = &stubMarketData{}
	}
	if analysis == nil {
		analysis = &stubAnalysis{}
	}
	factory := func() (*pipeline.Supervisor, interfaces.EventService) {
		bus := events.NewService(common.GetLogger())
		cfg := &common.PipelineConfig{DefaultTicker: "NVDA", FetchTimeout: "5s", AnalysisTimeout: "5s", ChatTimeout: "5s"}
		return pipeline.NewSupervisor(market, analysis, bus, cfg, common.GetLogger()), bus
	}
	cfg := &common.SessionsConfig{IdleTTL: "2h", JanitorSchedule: "*/10 * * * *", MaxSessions: 10}
	return session.NewManager(cfg, factory, nil, common.GetLogger())
}

func createSession(t *testing.T, sessions *session.Manager) *session.Session {
	t.Helper()
	sess, err := sessions.Create()
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}
	return sess
}

func sessionRequest(method, url, sessionID string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	return req
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestCreateSessionHandler(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	handler := NewSessionHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.CreateHandler(rec, httptest.NewRequest("POST", "/api/session", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["session_id"] == "" {
		t.Error("Expected a session_id in the response")
	}
	if _, ok := sessions.Get(resp["session_id"]); !ok {
		t.Error("Expected the returned ID to resolve")
	}
}

func TestCreateSessionHandlerRejectsGet(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	handler := NewSessionHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.CreateHandler(rec, httptest.NewRequest("GET", "/api/session", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestResolveSessionErrors(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	handler := NewStateHandler(sessions, common.GetLogger())

	tests := []struct {
		name       string
		sessionID  string
		wantStatus int
	}{
		{"missing ID", "", http.StatusBadRequest},
		{"unknown ID", "not-a-session", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.SnapshotHandler(rec, sessionRequest("GET", "/api/state", tt.sessionID, ""))
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Invalid JSON error: %v", err)
			}
			if resp["status"] != "error" {
				t.Errorf("Expected error envelope, got %v", resp)
			}
		})
	}
}

func TestSessionIDFromQueryString(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewStateHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.SnapshotHandler(rec, httptest.NewRequest("GET", "/api/state?session="+sess.ID, nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 resolving session via query, got %d", rec.Code)
	}
}

func TestTickerHandlerUpdatesInput(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewAnalysisHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.TickerHandler(rec, sessionRequest("POST", "/api/ticker", sess.ID, `{"ticker":"aapl"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap pipeline.SessionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid snapshot JSON: %v", err)
	}
	if snap.InputTicker != "AAPL" {
		t.Errorf("Expected normalized ticker AAPL, got %q", snap.InputTicker)
	}
}

func TestSlotSentinelServedVerbatim(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewStateHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.SlotsHandler(rec, sessionRequest("GET", "/api/slots/stockSnapshot", sess.ID, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"no_analysis_run_yet"}` {
		t.Errorf("Expected untouched sentinel, got %s", got)
	}
}

func TestCombinedSlotsNestPayloadsAsJSON(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewStateHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.SlotsHandler(rec, sessionRequest("GET", "/api/slots", sess.ID, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var combined map[string]map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &combined); err != nil {
		t.Fatalf("Expected nested JSON objects, got unmarshal error: %v", err)
	}
	if got := combined["aiKeyTakeaways"]["status"]; got != "no_analysis_run_yet" {
		t.Errorf("Expected nested sentinel object, got %v", got)
	}
}

func TestUnknownSlotReturns404(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewStateHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.SlotsHandler(rec, sessionRequest("GET", "/api/slots/nope", sess.ID, ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown slot, got %d", rec.Code)
	}
}

func TestStartAnalysisRefusedWhileRunning(t *testing.T) {
	release := make(chan struct{})
	market := &stubMarketData{
		fetchFunc: func(ctx context.Context, ticker string) (*interfaces.FetchResult, error) {
			<-release
			return (&stubMarketData{}).FetchStockData(ctx, ticker)
		},
	}
	sessions := testSessions(t, market, nil)
	sess := createSession(t, sessions)
	handler := NewAnalysisHandler(sessions, common.GetLogger())
	defer close(release)

	rec := httptest.NewRecorder()
	handler.StartHandler(rec, sessionRequest("POST", "/api/analysis", sess.ID, `{"ticker":"NVDA"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected first trigger to start, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.StartHandler(rec, sessionRequest("POST", "/api/analysis", sess.ID, ""))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while a run is in flight, got %d", rec.Code)
	}
}

func TestManualAnalysisRefusedBeforeFirstRun(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	handler := NewAnalysisHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.KeyTakeawaysHandler(rec, sessionRequest("POST", "/api/analysis/key-takeaways", sess.ID, ""))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 without a completed run, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.OptionsHandler(rec, sessionRequest("POST", "/api/analysis/options", sess.ID, ""))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 without a completed run, got %d", rec.Code)
	}
}

func TestChatSubmitAndHistoryHTML(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	chat := NewChatHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	chat.SubmitHandler(rec, sessionRequest("POST", "/api/chat", sess.ID, `{"message":"how does it look?"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected chat submit to be accepted, got %d: %s", rec.Code, rec.Body.String())
	}

	waitFor(t, 3*time.Second, func() bool {
		history := sess.Supervisor.ChatHistory()
		return len(history) == 2 && history[1].Role == models.ChatRoleModel
	})

	rec = httptest.NewRecorder()
	chat.HistoryHandler(rec, sessionRequest("GET", "/api/chat/history?format=html", sess.ID, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Messages []chatHistoryEntry `json:"messages"`
		Count    int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid history JSON: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("Expected 2 messages, got %d", resp.Count)
	}
	if resp.Messages[0].HTML != "" {
		t.Error("Expected no HTML for the user message")
	}
	if !strings.Contains(resp.Messages[1].HTML, "<strong>bullish</strong>") {
		t.Errorf("Expected rendered markdown, got %q", resp.Messages[1].HTML)
	}
}

func TestChatSubmitRefusesEmptyMessage(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)
	chat := NewChatHandler(sessions, common.GetLogger())

	rec := httptest.NewRecorder()
	chat.SubmitHandler(rec, sessionRequest("POST", "/api/chat", sess.ID, `{"message":"   "}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for blank input, got %d", rec.Code)
	}
}

func TestReportRefusedWithoutTicker(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	sess := createSession(t, sessions)

	// A fresh session has an input ticker but no analyzed one.
	handler := NewReportHandler(sessions, report.NewService(common.GetLogger()), common.GetLogger())

	rec := httptest.NewRecorder()
	handler.ExportHandler(rec, sessionRequest("GET", "/api/report", sess.ID, ""))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 before any analysis, got %d", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	handler := NewAPIHandler(common.GetLogger())

	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest("GET", "/api/version", nil))
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid version JSON: %v", err)
	}
	if resp["version"] == "" {
		t.Error("Expected a version string")
	}
}

func TestStatusHandlerFields(t *testing.T) {
	sessions := testSessions(t, nil, nil)
	createSession(t, sessions)

	cfg := common.NewDefaultConfig()
	handler := NewStatusHandler(sessions, cfg, common.GetLogger())

	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid status JSON: %v", err)
	}
	if resp["application"] != "auspex" {
		t.Errorf("Expected application auspex, got %v", resp["application"])
	}
	if resp["sessions"].(float64) != 1 {
		t.Errorf("Expected 1 session, got %v", resp["sessions"])
	}
}
