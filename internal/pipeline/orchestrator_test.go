package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
)

func newTestOrchestrator(md interfaces.MarketDataService, an interfaces.AnalysisService) *Orchestrator {
	return NewOrchestrator(md, an, time.Second, time.Second, common.GetLogger())
}

func discardEvents(Event) {}

func TestKeyTakeawaysGateSynthesizesFailure(t *testing.T) {
	m := NewMachine()
	m.activeTicker = "NVDA"
	if err := m.Dispatch(Event{Type: EventTriggerManualKeyTakeaways, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	// No fetch has run; prerequisites are missing. The façade must not be
	// called, so a nil analysis service proves the gate short-circuits.
	orch := newTestOrchestrator(nil, nil)
	ev, ok := orch.Step(m, discardEvents)
	if !ok {
		t.Fatal("Expected a synchronous synthesized failure")
	}
	if ev.Type != EventKeyTakeawaysFailure {
		t.Fatalf("Expected KEY_TAKEAWAYS_FAILURE, got %s", ev.Type)
	}
	if ev.Err.Message != "Prerequisite data missing for Key Takeaways" {
		t.Errorf("Unexpected message %q", ev.Err.Message)
	}

	if err := m.Dispatch(ev); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.Current() != StateKeyTakeawaysFailed {
		t.Errorf("Expected KEY_TAKEAWAYS_FAILED, got %s", m.Current())
	}
}

func TestOptionsGateSynthesizesFailure(t *testing.T) {
	m := NewMachine()
	m.activeTicker = "NVDA"
	if err := m.Dispatch(Event{Type: EventTriggerManualOptionsWalls, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	orch := newTestOrchestrator(nil, nil)
	ev, ok := orch.Step(m, discardEvents)
	if !ok {
		t.Fatal("Expected a synchronous synthesized failure")
	}
	if ev.Type != EventOptionsAnalysisFailure {
		t.Fatalf("Expected OPTIONS_ANALYSIS_FAILURE, got %s", ev.Type)
	}
	if !strings.Contains(ev.Err.Message, "Prerequisite data missing") {
		t.Errorf("Unexpected message %q", ev.Err.Message)
	}
}

func TestMissingSnapshotFailsAITAWithConsistencyDetail(t *testing.T) {
	m := NewMachine()
	driveToFetching(t, m, "NVDA")

	// Snapshot without prior-day prices cannot feed the pivot input.
	broken := fetchResult()
	broken.StockSnapshotJSON = `{"ticker":"NVDA","currentPrice":100}`
	for _, ev := range []Event{
		{Type: EventFetchDataSuccess, Epoch: m.Epoch(), Fetch: broken},
		{Type: EventInitiateAITASequence},
		{Type: EventTriggerAITA},
	} {
		if err := m.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
	}

	orch := newTestOrchestrator(nil, nil)
	ev, ok := orch.Step(m, discardEvents)
	if !ok {
		t.Fatal("Expected a synchronous synthesized failure")
	}
	if ev.Type != EventAITAFailure {
		t.Fatalf("Expected AI_TA_FAILURE, got %s", ev.Type)
	}
	if ev.Err.Message != "Snapshot data missing for AI TA" {
		t.Errorf("Unexpected message %q", ev.Err.Message)
	}
	if ev.Err.Detail != "consistency" {
		t.Errorf("Expected consistency detail, got %q", ev.Err.Detail)
	}

	if err := m.Dispatch(ev); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := m.Results().Get(SlotAIKeyTakeaways).JSON(); !strings.Contains(got, "skipped_due_to_ai_ta_consistency_failure") {
		t.Errorf("Expected consistency skip sentinel, got %s", got)
	}
}

func TestFetchLaunchedOncePerEpoch(t *testing.T) {
	md := &fakeMarketData{result: fetchResult()}
	m := NewMachine()
	driveToFetching(t, m, "NVDA")

	orch := newTestOrchestrator(md, nil)
	results := make(chan Event, 2)
	dispatch := func(ev Event) { results <- ev }

	if _, ok := orch.Step(m, dispatch); ok {
		t.Fatal("Expected launch, not a synchronous event")
	}
	// A second step in the same state and epoch is a no-op.
	if _, ok := orch.Step(m, dispatch); ok {
		t.Fatal("Expected second step to be a no-op")
	}

	select {
	case ev := <-results:
		if ev.Type != EventFetchDataSuccess {
			t.Fatalf("Expected FETCH_DATA_SUCCESS, got %s", ev.Type)
		}
		if ev.Epoch != m.Epoch() {
			t.Errorf("Expected result tagged with epoch %d, got %d", m.Epoch(), ev.Epoch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for fetch result")
	}

	select {
	case ev := <-results:
		t.Fatalf("Unexpected second result: %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
	if md.callCount() != 1 {
		t.Errorf("Expected one fetch call, got %d", md.callCount())
	}

	// The request slot was recorded before the call went out.
	if got := m.Results().Get(SlotFetchRequest).Payload; !strings.Contains(got, `"ticker":"NVDA"`) {
		t.Errorf("Unexpected fetch request log: %s", got)
	}
}

func TestTrivialStatesSelfAdvance(t *testing.T) {
	m := NewMachine()
	if err := m.Dispatch(Event{Type: EventStartFullAnalysis, Ticker: "NVDA"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	orch := newTestOrchestrator(&fakeMarketData{result: fetchResult()}, nil)
	seen := []PipelineState{m.Current()}
	for {
		ev, ok := orch.Step(m, discardEvents)
		if !ok {
			break
		}
		if err := m.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
		seen = append(seen, m.Current())
	}

	want := []PipelineState{StateInitializingAnalysis, StateAwaitingDataFetchTrigger, StateFetchingData}
	if len(seen) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Expected states %v, got %v", want, seen)
		}
	}
}
