package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ternarybob/auspex/internal/interfaces"
)

func fetchResult() *interfaces.FetchResult {
	return &interfaces.FetchResult{
		MarketStatusJSON:  `{"market":"open"}`,
		StockSnapshotJSON: `{"ticker":"NVDA","currentPrice":100,"prevDay":{"h":110,"l":90,"c":100}}`,
		StandardTAsJSON:   `{"rsi":{"14":55.1}}`,
		OptionsChainJSON:  `{"ticker":"NVDA","rows":[]}`,
		RequestLogJSON:    `{"snapshot":"/v2/snapshot"}`,
		ResponseLogJSON:   `{"snapshot":"{}"}`,
	}
}

// driveToFetching starts a full run and advances through the trivial
// states up to the fetch working state.
func driveToFetching(t *testing.T, m *Machine, ticker string) {
	t.Helper()
	for _, ev := range []Event{
		{Type: EventStartFullAnalysis, Ticker: ticker},
		{Type: EventInitializationComplete},
		{Type: EventTriggerDataFetch},
	} {
		if err := m.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
	}
}

func TestFullRunWalksEveryAutomatedState(t *testing.T) {
	m := NewMachine()
	if m.Current() != StateIdle {
		t.Fatalf("Expected initial state IDLE, got %s", m.Current())
	}

	driveToFetching(t, m, "NVDA")
	if m.Current() != StateFetchingData {
		t.Fatalf("Expected FETCHING_DATA, got %s", m.Current())
	}
	if !m.FullRun() {
		t.Error("Expected full-run flag set")
	}

	steps := []struct {
		ev   Event
		want PipelineState
	}{
		{Event{Type: EventFetchDataSuccess, Epoch: m.Epoch(), Fetch: fetchResult()}, StateDataFetchSucceeded},
		{Event{Type: EventInitiateAITASequence}, StateAwaitingAITATrigger},
		{Event{Type: EventTriggerAITA}, StateAnalyzingTA},
		{Event{Type: EventAITASuccess, Epoch: m.Epoch(), Pivots: pivotFixture()}, StateAITASucceeded},
		{Event{Type: EventFinalizeAutomatedPipeline}, StateFullAnalysisComplete},
		{Event{Type: EventProceedToIdle}, StateIdle},
	}
	for _, step := range steps {
		if err := m.Dispatch(step.ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", step.ev.Type, err)
		}
		if m.Current() != step.want {
			t.Fatalf("After %s: expected %s, got %s", step.ev.Type, step.want, m.Current())
		}
	}

	// Success keeps the ticker bound for manual follow-ups.
	if m.ActiveTicker() != "NVDA" {
		t.Errorf("Expected active ticker preserved after success, got %q", m.ActiveTicker())
	}

	for _, slot := range []string{SlotMarketStatus, SlotStockSnapshot, SlotStandardTAs, SlotOptionsChain, SlotAIAnalyzedTA} {
		if !m.Results().Get(slot).IsReady() {
			t.Errorf("Expected slot %s ready, got status %v", slot, m.Results().Get(slot).Status)
		}
	}
}

func TestFetchFailureSkipsAllDownstream(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")

	err := m.Dispatch(Event{
		Type:  EventFetchDataFailure,
		Epoch: m.Epoch(),
		Err:   &StageError{Message: "Failed to fetch market data", Detail: "429"},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.Current() != StateDataFetchFailed {
		t.Fatalf("Expected DATA_FETCH_FAILED, got %s", m.Current())
	}

	for _, slot := range []string{SlotAIAnalyzedTA, SlotAIKeyTakeaways, SlotAIOptionsWalls} {
		got := m.Results().Get(slot).JSON()
		if !strings.Contains(got, `"skipped_due_to_data_fetch_failure"`) {
			t.Errorf("Slot %s: expected data_fetch skip sentinel, got %s", slot, got)
		}
	}

	// Hard failure tears down the ticker binding on the way to idle.
	if err := m.Dispatch(Event{Type: EventProceedToIdle}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.ActiveTicker() != "" {
		t.Errorf("Expected active ticker cleared after fetch failure, got %q", m.ActiveTicker())
	}
}

func TestStaleSnapshotRendersExactMismatchError(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")

	err := m.Dispatch(Event{
		Type:           EventStaleDataFromAction,
		Epoch:          m.Epoch(),
		ExpectedTicker: "NVDA",
		FoundTicker:    "AAPL",
		RequestLog:     `{"snapshot":"/v2/snapshot"}`,
		ResponseLog:    `{"snapshot":"{}"}`,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.Current() != StateStaleDataFromAction {
		t.Fatalf("Expected STALE_DATA_FROM_ACTION_ERROR, got %s", m.Current())
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(m.Results().Get(SlotStockSnapshot).JSON()), &payload); err != nil {
		t.Fatalf("Snapshot slot is not valid JSON: %v", err)
	}
	if payload["status"] != "error" {
		t.Errorf("Expected error status, got %q", payload["status"])
	}
	wantMsg := "Stale data detected from data source. Expected NVDA, received snapshot for AAPL."
	if payload["message"] != wantMsg {
		t.Errorf("Message mismatch:\n got %q\nwant %q", payload["message"], wantMsg)
	}
	wantDetail := "Expected NVDA, got AAPL from action state."
	if payload["details"] != wantDetail {
		t.Errorf("Details mismatch:\n got %q\nwant %q", payload["details"], wantDetail)
	}

	if got := m.Results().Get(SlotAIKeyTakeaways).JSON(); !strings.Contains(got, `"skipped_due_to_stale_action_data_failure"`) {
		t.Errorf("Expected stale_action_data skip sentinel, got %s", got)
	}
}

func TestAITAConsistencyFailureUsesDistinctSkipReason(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")
	if err := m.Dispatch(Event{Type: EventFetchDataSuccess, Epoch: m.Epoch(), Fetch: fetchResult()}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	for _, typ := range []EventType{EventInitiateAITASequence, EventTriggerAITA} {
		if err := m.Dispatch(Event{Type: typ}); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", typ, err)
		}
	}

	err := m.Dispatch(Event{
		Type:  EventAITAFailure,
		Epoch: m.Epoch(),
		Err:   &StageError{Message: "Snapshot data missing for AI TA", Detail: "consistency"},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if got := m.Results().Get(SlotAIKeyTakeaways).JSON(); !strings.Contains(got, `"skipped_due_to_ai_ta_consistency_failure"`) {
		t.Errorf("Expected ai_ta_consistency skip sentinel, got %s", got)
	}
}

func TestRetriggerBumpsEpochAndDiscardsInFlightResult(t *testing.T) {
	m := NewMachine()
	m.activeTicker = "NVDA"
	if err := m.Dispatch(Event{Type: EventTriggerManualKeyTakeaways, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	firstEpoch := m.Epoch()

	// Retrigger while the first call is conceptually in flight.
	if err := m.Dispatch(Event{Type: EventTriggerManualKeyTakeaways, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Retrigger failed: %v", err)
	}
	if m.Current() != StateGeneratingKeyTakeaways {
		t.Fatalf("Expected retrigger to stay in GENERATING_KEY_TAKEAWAYS, got %s", m.Current())
	}
	if m.Epoch() == firstEpoch {
		t.Fatal("Expected retrigger to bump the epoch")
	}

	// First call's late result carries the superseded epoch.
	err := m.Dispatch(Event{Type: EventKeyTakeawaysSuccess, Epoch: firstEpoch, Takeaways: takeawaysFixture()})
	if !errors.Is(err, ErrStaleResult) {
		t.Fatalf("Expected ErrStaleResult, got %v", err)
	}
	if m.Results().Get(SlotAIKeyTakeaways).Status != SlotPending {
		t.Error("Expected key-takeaways slot still pending after stale result discarded")
	}

	// The current epoch's result lands.
	if err := m.Dispatch(Event{Type: EventKeyTakeawaysSuccess, Epoch: m.Epoch(), Takeaways: takeawaysFixture()}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.Current() != StateKeyTakeawaysSucceeded {
		t.Fatalf("Expected KEY_TAKEAWAYS_SUCCEEDED, got %s", m.Current())
	}
}

func TestManualTriggersAreMutuallyExclusive(t *testing.T) {
	m := NewMachine()
	m.activeTicker = "NVDA"
	if err := m.Dispatch(Event{Type: EventTriggerManualKeyTakeaways, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	err := m.Dispatch(Event{Type: EventTriggerManualOptionsWalls, Ticker: "NVDA"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected options trigger rejected during key takeaways, got %v", err)
	}
	if m.Current() != StateGeneratingKeyTakeaways {
		t.Errorf("Expected state unchanged after rejection, got %s", m.Current())
	}
}

func TestManualRunResetsOnlyItsOwnSlots(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")
	for _, ev := range []Event{
		{Type: EventFetchDataSuccess, Epoch: m.Epoch(), Fetch: fetchResult()},
		{Type: EventInitiateAITASequence},
		{Type: EventTriggerAITA},
		{Type: EventAITASuccess, Epoch: m.Epoch(), Pivots: pivotFixture()},
		{Type: EventFinalizeAutomatedPipeline},
		{Type: EventProceedToIdle},
	} {
		if err := m.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
	}

	if err := m.Dispatch(Event{Type: EventTriggerManualOptionsWalls, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if m.Results().Get(SlotAIOptionsWalls).Status != SlotPending {
		t.Error("Expected options slot pending after manual trigger")
	}
	if !m.Results().Get(SlotStockSnapshot).IsReady() {
		t.Error("Expected snapshot slot untouched by manual options run")
	}
	if !m.Results().Get(SlotAIAnalyzedTA).IsReady() {
		t.Error("Expected AI TA slot untouched by manual options run")
	}
}

func TestResultEventsRejectedOutsideWorkingState(t *testing.T) {
	m := NewMachine()
	err := m.Dispatch(Event{Type: EventFetchDataSuccess, Fetch: fetchResult()})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected rejection in IDLE, got %v", err)
	}
	err = m.Dispatch(Event{Type: EventKeyTakeawaysSuccess, Takeaways: takeawaysFixture()})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected rejection in IDLE, got %v", err)
	}
}

func TestStartRejectedWhileBusy(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")

	err := m.Dispatch(Event{Type: EventStartFullAnalysis, Ticker: "AAPL"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected start rejected while fetching, got %v", err)
	}
	if m.ActiveTicker() != "NVDA" {
		t.Errorf("Expected active ticker unchanged, got %q", m.ActiveTicker())
	}
}
