package pipeline

import "github.com/ternarybob/auspex/internal/common"

// MainTab mirrors global pipeline progress into UI-actionable local state
// and tracks ticker-input validity. Like Machine, it is serialized by the
// supervisor.
type MainTab struct {
	state        MainTabState
	inputTicker  string
	activeTicker string
}

// NewMainTab creates the main-tab machine in its idle state.
func NewMainTab(defaultTicker string) *MainTab {
	tab := &MainTab{state: TabIdle}
	tab.SetInputTicker(defaultTicker)
	return tab
}

func (t *MainTab) State() MainTabState   { return t.state }
func (t *MainTab) InputTicker() string   { return t.inputTicker }
func (t *MainTab) ActiveTicker() string  { return t.activeTicker }
func (t *MainTab) InputValid() bool      { return common.ValidTicker(t.inputTicker) }

// SetInputTicker updates the ticker input. Editing the input away from the
// analyzed ticker while manual actions are enabled demotes the state, so
// manual actions are only offered for the ticker actually analyzed.
// Re-entering the same ticker keeps them enabled.
func (t *MainTab) SetInputTicker(raw string) {
	t.inputTicker = common.NormalizeTicker(raw)

	switch t.state {
	case TabManualActionsEnabled:
		if t.inputTicker != t.activeTicker {
			t.demoteOnEdit()
		}
	case TabIdle, TabInputValid:
		if t.InputValid() {
			t.state = TabInputValid
		} else {
			t.state = TabIdle
		}
	}
}

func (t *MainTab) demoteOnEdit() {
	if t.InputValid() {
		t.state = TabInputValid
	} else {
		t.state = TabIdle
	}
}

// RequestAnalysis records the user's intent to run the automated pipeline.
func (t *MainTab) RequestAnalysis() {
	t.state = TabAutomatedPipelineRequested
}

// RequestKeyTakeaways records the user's intent to run a manual
// key-takeaways analysis.
func (t *MainTab) RequestKeyTakeaways() {
	t.state = TabManualKeyTakeawaysRequested
}

// RequestOptionsAnalysis records the user's intent to run a manual options
// analysis.
func (t *MainTab) RequestOptionsAnalysis() {
	t.state = TabManualOptionsAnalysisRequested
}

// ObserveGlobal mirrors a global pipeline transition into local state.
func (t *MainTab) ObserveGlobal(global PipelineState, activeTicker string) {
	switch global {
	case StateFullAnalysisComplete:
		t.activeTicker = activeTicker
		t.state = TabManualActionsEnabled

	case StateGeneratingKeyTakeaways:
		t.state = TabManualKeyTakeawaysPending

	case StateAnalyzingOptions:
		t.state = TabManualOptionsAnalysisPending

	case StateDataFetchFailed, StateStaleDataFromAction:
		// Hard failure tears down the binding; the user re-runs analysis.
		t.activeTicker = ""
		t.demoteOnEdit()

	case StateIdle:
		// Global settles back to idle after every terminal state. Manual
		// actions stay enabled when a binding survives the run.
		if t.activeTicker != "" && t.activeTicker == activeTicker {
			t.state = TabManualActionsEnabled
		}

	default:
		// Any other non-idle global state during a full run means the
		// automated pipeline is in progress.
		if global.IsBusy() && t.state != TabManualKeyTakeawaysPending && t.state != TabManualOptionsAnalysisPending {
			t.state = TabAutomatedPipelineInProgress
		}
	}
}

// AnalyzeEnabled reports whether the automated-run button is enabled.
func (t *MainTab) AnalyzeEnabled(global PipelineState) bool {
	return t.InputValid() && !global.IsBusy()
}

// KeyTakeawaysEnabled reports whether the manual key-takeaways button is
// enabled: manual actions unlocked, the input still names the analyzed
// ticker, nothing is loading, and every prerequisite slot is ready.
func (t *MainTab) KeyTakeawaysEnabled(global PipelineState, rs *ResultSet) bool {
	return t.state == TabManualActionsEnabled &&
		t.activeTicker != "" &&
		t.activeTicker == t.inputTicker &&
		!global.IsWorking() &&
		KeyTakeawaysReady(rs)
}

// OptionsAnalysisEnabled is the options-analysis analogue of
// KeyTakeawaysEnabled.
func (t *MainTab) OptionsAnalysisEnabled(global PipelineState, rs *ResultSet) bool {
	return t.state == TabManualActionsEnabled &&
		t.activeTicker != "" &&
		t.activeTicker == t.inputTicker &&
		!global.IsWorking() &&
		OptionsAnalysisReady(rs)
}
