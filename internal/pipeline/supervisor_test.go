package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/services/analysis"
	"github.com/ternarybob/auspex/pkg/models"
)

type fakeMarketData struct {
	mu     sync.Mutex
	calls  int
	result *interfaces.FetchResult
	err    error
}

func (f *fakeMarketData) FetchStockData(ctx context.Context, ticker string) (*interfaces.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeMarketData) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnalysis struct {
	mu        sync.Mutex
	pivots    *models.PivotLevels
	takeaways *models.KeyTakeaways
	walls     *models.OptionsWalls
	chatReply string
	chatErr   error
	chatCalls int
}

func (f *fakeAnalysis) AnalyzeTA(ctx context.Context, input interfaces.PivotInput) (*models.PivotLevels, error) {
	return f.pivots, nil
}

func (f *fakeAnalysis) GenerateKeyTakeaways(ctx context.Context, input interfaces.TakeawaysInput) (*models.KeyTakeaways, error) {
	return f.takeaways, nil
}

func (f *fakeAnalysis) AnalyzeOptionsChain(ctx context.Context, input interfaces.OptionsAnalysisInput) (*models.OptionsWalls, error) {
	return f.walls, nil
}

func (f *fakeAnalysis) ChatTurn(ctx context.Context, input interfaces.ChatTurnInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	return f.chatReply, f.chatErr
}

func newTestSupervisor(md interfaces.MarketDataService, an interfaces.AnalysisService) *Supervisor {
	cfg := &common.PipelineConfig{
		FetchTimeout:    "5s",
		AnalysisTimeout: "5s",
		ChatTimeout:     "5s",
		DefaultTicker:   "NVDA",
	}
	return NewSupervisor(md, an, nil, cfg, common.GetLogger())
}

func healthyFakes() (*fakeMarketData, *fakeAnalysis) {
	md := &fakeMarketData{result: fetchResult()}
	an := &fakeAnalysis{
		pivots:    pivotFixture(),
		takeaways: takeawaysFixture(),
		walls:     wallsFixture(),
		chatReply: "RSI at 55 reads neutral with room to run.",
	}
	return md, an
}

// waitFor polls until the condition holds or the deadline passes. Façade
// results arrive on worker goroutines, so tests observe eventual state.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestAutomatedRunSettlesWithAllSlots(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}

	waitFor(t, "pipeline to settle", func() bool {
		return sup.Snapshot().PipelineState == StateIdle
	})

	snap := sup.Snapshot()
	if snap.ActiveTicker != "NVDA" {
		t.Errorf("Expected active ticker NVDA, got %q", snap.ActiveTicker)
	}
	for _, slot := range []string{SlotMarketStatus, SlotStockSnapshot, SlotStandardTAs, SlotOptionsChain, SlotAIAnalyzedTA} {
		if !DataReady(snap.Slots[slot]) {
			t.Errorf("Slot %s not ready: %s", slot, snap.Slots[slot])
		}
	}
	if !strings.Contains(snap.Slots[SlotAIAnalyzedTA], `"pivotPoint":100`) {
		t.Errorf("Unexpected AI TA payload: %s", snap.Slots[SlotAIAnalyzedTA])
	}
	if !snap.TakeawaysOK || !snap.OptionsOK {
		t.Error("Expected manual actions enabled after a successful run")
	}
	if md.callCount() != 1 {
		t.Errorf("Expected exactly one fetch call, got %d", md.callCount())
	}
}

func TestStartRefusedWhileRunInProgress(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	// Immediately after the first accept the pipeline is busy; a second
	// trigger may only succeed once the first run has settled.
	err := sup.StartAnalysis()
	if err == nil {
		waitFor(t, "pipeline to settle", func() bool {
			return sup.Snapshot().PipelineState == StateIdle
		})
	}
	waitFor(t, "pipeline to settle", func() bool {
		return sup.Snapshot().PipelineState == StateIdle
	})
}

func TestFetchFailureSurfacesErrorAndRecovers(t *testing.T) {
	md := &fakeMarketData{err: context.DeadlineExceeded}
	_, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	waitFor(t, "pipeline to settle", func() bool {
		return sup.Snapshot().PipelineState == StateIdle
	})

	snap := sup.Snapshot()
	if !strings.Contains(snap.Slots[SlotStockSnapshot], `"status":"error"`) {
		t.Errorf("Expected error sentinel in snapshot slot, got %s", snap.Slots[SlotStockSnapshot])
	}
	if !strings.Contains(snap.Slots[SlotAIKeyTakeaways], "skipped_due_to_data_fetch_failure") {
		t.Errorf("Expected skip sentinel, got %s", snap.Slots[SlotAIKeyTakeaways])
	}
	if snap.ActiveTicker != "" {
		t.Errorf("Expected ticker binding cleared, got %q", snap.ActiveTicker)
	}
	if !snap.AnalyzeEnabled {
		t.Error("Expected analyze button re-enabled after failure")
	}
	if snap.TakeawaysOK {
		t.Error("Expected manual actions disabled after failure")
	}
}

func TestStaleTickerSurfacesMismatch(t *testing.T) {
	md := &fakeMarketData{err: &interfaces.StaleTickerError{Expected: "NVDA", Got: "AAPL"}}
	_, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	waitFor(t, "pipeline to settle", func() bool {
		return sup.Snapshot().PipelineState == StateIdle
	})

	snap := sup.Snapshot()
	want := "Stale data detected from data source. Expected NVDA, received snapshot for AAPL."
	if !strings.Contains(snap.Slots[SlotStockSnapshot], want) {
		t.Errorf("Expected stale message in snapshot slot, got %s", snap.Slots[SlotStockSnapshot])
	}
	if !strings.Contains(snap.Slots[SlotAIOptionsWalls], "skipped_due_to_stale_action_data_failure") {
		t.Errorf("Expected stale skip sentinel, got %s", snap.Slots[SlotAIOptionsWalls])
	}
}

func TestManualKeyTakeawaysAfterCompletion(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	waitFor(t, "automated run", func() bool {
		return sup.Snapshot().TakeawaysOK
	})

	if err := sup.GenerateKeyTakeaways(); err != nil {
		t.Fatalf("GenerateKeyTakeaways failed: %v", err)
	}
	waitFor(t, "key takeaways result", func() bool {
		snap := sup.Snapshot()
		return snap.PipelineState == StateIdle && DataReady(snap.Slots[SlotAIKeyTakeaways])
	})

	snap := sup.Snapshot()
	if !strings.Contains(snap.Slots[SlotAIKeyTakeaways], "priceAction") {
		t.Errorf("Unexpected takeaways payload: %s", snap.Slots[SlotAIKeyTakeaways])
	}
	// The fetch-stage slots were not rerun.
	if md.callCount() != 1 {
		t.Errorf("Expected no second fetch, got %d calls", md.callCount())
	}
}

func TestManualOptionsAfterCompletion(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	waitFor(t, "automated run", func() bool {
		return sup.Snapshot().OptionsOK
	})

	if err := sup.AnalyzeOptions(); err != nil {
		t.Fatalf("AnalyzeOptions failed: %v", err)
	}
	waitFor(t, "options result", func() bool {
		snap := sup.Snapshot()
		return snap.PipelineState == StateIdle && DataReady(snap.Slots[SlotAIOptionsWalls])
	})

	if got := sup.Snapshot().Slots[SlotAIOptionsWalls]; !strings.Contains(got, "callWalls") {
		t.Errorf("Unexpected walls payload: %s", got)
	}
}

func TestManualActionsRefusedWithoutCompletedRun(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.GenerateKeyTakeaways(); err == nil {
		t.Error("Expected key takeaways refused before any run")
	}
	if err := sup.AnalyzeOptions(); err == nil {
		t.Error("Expected options analysis refused before any run")
	}
}

func TestChatTurnAppendsUserAndReply(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.SubmitChat("what does the RSI say?"); err != nil {
		t.Fatalf("SubmitChat failed: %v", err)
	}
	waitFor(t, "chat reply", func() bool {
		return len(sup.ChatHistory()) == 2
	})

	history := sup.ChatHistory()
	if history[0].Role != models.ChatRoleUser || history[0].Content != "what does the RSI say?" {
		t.Errorf("Unexpected user message: %+v", history[0])
	}
	if history[1].Role != models.ChatRoleModel || history[1].Content != an.chatReply {
		t.Errorf("Unexpected model reply: %+v", history[1])
	}
	if history[0].ID == "" || history[1].ID == "" {
		t.Error("Expected messages to carry IDs")
	}

	snap := sup.Snapshot()
	if snap.ChatState != ChatIdle {
		t.Errorf("Expected chat idle after turn, got %s", snap.ChatState)
	}
}

func TestChatApologiesByFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"generic failure", context.DeadlineExceeded, ChatErrorApology},
		{"empty response", analysis.ErrChatEmptyResponse, ChatUnclearApology},
		{"unparsable output", analysis.ErrChatUnparsable, ChatParseApology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, an := healthyFakes()
			an.chatErr = tt.err
			sup := newTestSupervisor(md, an)

			if err := sup.SubmitChat("hello"); err != nil {
				t.Fatalf("SubmitChat failed: %v", err)
			}
			waitFor(t, "apology", func() bool {
				return len(sup.ChatHistory()) == 2
			})

			if got := sup.ChatHistory()[1].Content; got != tt.want {
				t.Errorf("Apology mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestChatRefusedWhilePipelineBusy(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.StartAnalysis(); err != nil {
		t.Fatalf("StartAnalysis failed: %v", err)
	}
	// The accept path is synchronous up to the fetch launch, so the
	// pipeline is observably busy right away unless it already settled.
	if sup.Snapshot().PipelineState != StateIdle {
		if err := sup.SubmitChat("hello"); err == nil {
			t.Error("Expected chat refused while pipeline busy")
		}
	}
	waitFor(t, "pipeline to settle", func() bool {
		return sup.Snapshot().PipelineState == StateIdle
	})

	if err := sup.SubmitChat("hello"); err != nil {
		t.Errorf("Expected chat accepted after settle: %v", err)
	}
	waitFor(t, "chat reply", func() bool {
		return len(sup.ChatHistory()) == 2
	})
}

func TestDuplicateModelReplySuppressed(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	reply := models.ChatMessage{ID: "a", Role: models.ChatRoleModel, Content: "Same answer."}
	dup := models.ChatMessage{ID: "b", Role: models.ChatRoleModel, Content: "Same answer."}

	sup.mu.Lock()
	sup.appendChatLocked(reply)
	sup.appendChatLocked(dup)
	sup.mu.Unlock()

	if got := len(sup.ChatHistory()); got != 1 {
		t.Fatalf("Expected duplicate reply suppressed, history length %d", got)
	}

	// A user message in between makes the same content legitimate again.
	sup.mu.Lock()
	sup.appendChatLocked(models.ChatMessage{ID: "c", Role: models.ChatRoleUser, Content: "again?"})
	sup.appendChatLocked(models.ChatMessage{ID: "d", Role: models.ChatRoleModel, Content: "Same answer."})
	sup.mu.Unlock()

	if got := len(sup.ChatHistory()); got != 3 {
		t.Errorf("Expected reply after user turn kept, history length %d", got)
	}
}

func TestEmptyChatInputRefused(t *testing.T) {
	md, an := healthyFakes()
	sup := newTestSupervisor(md, an)

	if err := sup.SubmitChat("   "); err == nil {
		t.Error("Expected whitespace-only chat input refused")
	}
	if len(sup.ChatHistory()) != 0 {
		t.Error("Expected no history entries for refused input")
	}
}
