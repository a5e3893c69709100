package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStaleResult marks a façade result whose epoch no longer matches the
// machine's. A retrigger bumped the epoch while the call was in flight;
// the late result is discarded instead of clobbering the newer run.
var ErrStaleResult = errors.New("stale façade result discarded")

// ErrRejected marks an event the current state does not accept.
var ErrRejected = errors.New("event rejected in current state")

// Machine is the global pipeline state machine. It is a synchronous
// reducer: Dispatch applies one event, mutating state and result slots.
// It is not goroutine safe; the supervisor serializes access.
type Machine struct {
	current      PipelineState
	previous     PipelineState
	activeTicker string
	fullRun      bool
	epoch        uint64
	results      *ResultSet
}

// NewMachine creates a pipeline machine in the idle state with all result
// slots at their initial sentinel.
func NewMachine() *Machine {
	return &Machine{
		current: StateIdle,
		results: NewResultSet(),
	}
}

func (m *Machine) Current() PipelineState  { return m.current }
func (m *Machine) Previous() PipelineState { return m.previous }
func (m *Machine) ActiveTicker() string    { return m.activeTicker }
func (m *Machine) FullRun() bool           { return m.fullRun }
func (m *Machine) Epoch() uint64           { return m.epoch }
func (m *Machine) Results() *ResultSet     { return m.results }

// RecordRequest stores a request payload into its debug slot without a
// state transition.
func (m *Machine) RecordRequest(slot, payload string) {
	m.results.Set(slot, ReadySlot(payload))
}

func (m *Machine) transition(next PipelineState) {
	m.previous = m.current
	m.current = next
}

// resultEpochValid checks a façade-result event against the current epoch.
// Zero means the event was raised synchronously and is always valid.
func (m *Machine) resultEpochValid(ev Event) bool {
	return ev.Epoch == 0 || ev.Epoch == m.epoch
}

// Dispatch applies one event. It returns ErrRejected when the current
// state does not accept the event, and ErrStaleResult when a façade result
// arrives for a superseded epoch. Both are expected conditions for the
// caller to log, not programming errors.
func (m *Machine) Dispatch(ev Event) error {
	switch ev.Type {
	case EventStartFullAnalysis:
		return m.onStartFullAnalysis(ev)
	case EventTriggerManualKeyTakeaways:
		return m.onTriggerManualKeyTakeaways(ev)
	case EventTriggerManualOptionsWalls:
		return m.onTriggerManualOptions(ev)

	case EventInitializationComplete:
		if m.current != StateInitializingAnalysis {
			return m.reject(ev)
		}
		m.transition(StateAwaitingDataFetchTrigger)
		return nil

	case EventTriggerDataFetch:
		if m.current != StateAwaitingDataFetchTrigger {
			return m.reject(ev)
		}
		m.transition(StateFetchingData)
		return nil

	case EventFetchDataSuccess:
		return m.onFetchSuccess(ev)
	case EventFetchDataFailure:
		return m.onFetchFailure(ev)
	case EventStaleDataFromAction:
		return m.onStaleData(ev)

	case EventInitiateAITASequence:
		if m.current != StateDataFetchSucceeded || !m.fullRun {
			return m.reject(ev)
		}
		m.results.ResetAITA()
		m.transition(StateAwaitingAITATrigger)
		return nil

	case EventTriggerAITA:
		if m.current != StateAwaitingAITATrigger {
			return m.reject(ev)
		}
		m.transition(StateAnalyzingTA)
		return nil

	case EventAITASuccess:
		return m.onAITASuccess(ev)
	case EventAITAFailure:
		return m.onAITAFailure(ev)

	case EventFinalizeAutomatedPipeline:
		switch m.current {
		case StateAITASucceeded, StateAITAFailed,
			StateKeyTakeawaysSucceeded, StateKeyTakeawaysFailed,
			StateOptionsAnalysisSucceeded, StateOptionsAnalysisFailed:
			m.transition(StateFullAnalysisComplete)
			return nil
		}
		return m.reject(ev)

	case EventKeyTakeawaysSuccess:
		return m.onKeyTakeawaysSuccess(ev)
	case EventKeyTakeawaysFailure:
		return m.onKeyTakeawaysFailure(ev)
	case EventOptionsAnalysisSuccess:
		return m.onOptionsSuccess(ev)
	case EventOptionsAnalysisFailure:
		return m.onOptionsFailure(ev)

	case EventProceedToIdle:
		return m.onProceedToIdle(ev)
	}

	return m.reject(ev)
}

func (m *Machine) reject(ev Event) error {
	return fmt.Errorf("%w: %s in %s", ErrRejected, ev.Type, m.current)
}

func (m *Machine) onStartFullAnalysis(ev Event) error {
	if m.current != StateIdle {
		return m.reject(ev)
	}
	m.activeTicker = ev.Ticker
	m.fullRun = true
	m.epoch++
	m.results.ResetAll()
	m.transition(StateInitializingAnalysis)
	return nil
}

func (m *Machine) onTriggerManualKeyTakeaways(ev Event) error {
	switch m.current {
	case StateIdle:
		m.beginManual(ev)
		m.results.ResetKeyTakeaways()
		m.transition(StateGeneratingKeyTakeaways)
		return nil
	case StateGeneratingKeyTakeaways:
		// Retrigger: reset the slots and bump the epoch so the in-flight
		// call's result is discarded on arrival. Stays in the same state.
		m.beginManual(ev)
		m.results.ResetKeyTakeaways()
		return nil
	}
	// Any other working state holds the machine. Mutual exclusion between
	// the two manual analyses is enforced here, not only by UI gating.
	return m.reject(ev)
}

func (m *Machine) onTriggerManualOptions(ev Event) error {
	switch m.current {
	case StateIdle:
		m.beginManual(ev)
		m.results.ResetOptionsAnalysis()
		m.transition(StateAnalyzingOptions)
		return nil
	case StateAnalyzingOptions:
		m.beginManual(ev)
		m.results.ResetOptionsAnalysis()
		return nil
	}
	return m.reject(ev)
}

func (m *Machine) beginManual(ev Event) {
	if ev.Ticker != "" {
		m.activeTicker = ev.Ticker
	}
	m.fullRun = false
	m.epoch++
}

func (m *Machine) onFetchSuccess(ev Event) error {
	if m.current != StateFetchingData {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotMarketStatus, ReadySlot(ev.Fetch.MarketStatusJSON))
	m.results.Set(SlotStockSnapshot, ReadySlot(ev.Fetch.StockSnapshotJSON))
	m.results.Set(SlotStandardTAs, ReadySlot(ev.Fetch.StandardTAsJSON))
	m.results.Set(SlotOptionsChain, ReadySlot(ev.Fetch.OptionsChainJSON))
	m.results.Set(SlotFetchRequest, ReadySlot(ev.Fetch.RequestLogJSON))
	m.results.Set(SlotFetchResponse, ReadySlot(ev.Fetch.ResponseLogJSON))
	m.transition(StateDataFetchSucceeded)
	return nil
}

func (m *Machine) onFetchFailure(ev Event) error {
	if m.current != StateFetchingData {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	errVal := ErrorSlot(ev.Err.Message, ev.Err.Detail)
	m.results.Set(SlotMarketStatus, errVal)
	m.results.Set(SlotStockSnapshot, errVal)
	m.results.Set(SlotStandardTAs, errVal)
	m.results.Set(SlotOptionsChain, errVal)
	m.results.SkipDownstreamOfFetch("data_fetch")
	m.transition(StateDataFetchFailed)
	return nil
}

func (m *Machine) onStaleData(ev Event) error {
	if m.current != StateFetchingData {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	message := fmt.Sprintf(
		"Stale data detected from data source. Expected %s, received snapshot for %s.",
		ev.ExpectedTicker, ev.FoundTicker)
	detail := fmt.Sprintf("Expected %s, got %s from action state.", ev.ExpectedTicker, ev.FoundTicker)
	errVal := ErrorSlot(message, detail)
	m.results.Set(SlotMarketStatus, errVal)
	m.results.Set(SlotStockSnapshot, errVal)
	m.results.Set(SlotStandardTAs, errVal)
	m.results.Set(SlotOptionsChain, errVal)
	if ev.RequestLog != "" {
		m.results.Set(SlotFetchRequest, ReadySlot(ev.RequestLog))
	}
	if ev.ResponseLog != "" {
		m.results.Set(SlotFetchResponse, ReadySlot(ev.ResponseLog))
	}
	m.results.SkipDownstreamOfFetch("stale_action_data")
	m.transition(StateStaleDataFromAction)
	return nil
}

func (m *Machine) onAITASuccess(ev Event) error {
	if m.current != StateAnalyzingTA {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIAnalyzedTA, ReadySlot(mustMarshal(ev.Pivots)))
	m.transition(StateAITASucceeded)
	return nil
}

func (m *Machine) onAITAFailure(ev Event) error {
	if m.current != StateAnalyzingTA {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIAnalyzedTA, ErrorSlot(ev.Err.Message, ev.Err.Detail))
	reason := "ai_ta"
	if ev.Err.Detail == "consistency" {
		reason = "ai_ta_consistency"
	}
	m.results.SkipDownstreamOfAITA(reason)
	m.transition(StateAITAFailed)
	return nil
}

func (m *Machine) onKeyTakeawaysSuccess(ev Event) error {
	if m.current != StateGeneratingKeyTakeaways {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIKeyTakeaways, ReadySlot(mustMarshal(ev.Takeaways)))
	m.transition(StateKeyTakeawaysSucceeded)
	return nil
}

func (m *Machine) onKeyTakeawaysFailure(ev Event) error {
	if m.current != StateGeneratingKeyTakeaways {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIKeyTakeaways, ErrorSlot(ev.Err.Message, ev.Err.Detail))
	m.transition(StateKeyTakeawaysFailed)
	return nil
}

func (m *Machine) onOptionsSuccess(ev Event) error {
	if m.current != StateAnalyzingOptions {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIOptionsWalls, ReadySlot(mustMarshal(ev.Walls)))
	m.transition(StateOptionsAnalysisSucceeded)
	return nil
}

func (m *Machine) onOptionsFailure(ev Event) error {
	if m.current != StateAnalyzingOptions {
		return m.reject(ev)
	}
	if !m.resultEpochValid(ev) {
		return ErrStaleResult
	}
	m.results.Set(SlotAIOptionsWalls, ErrorSlot(ev.Err.Message, ev.Err.Detail))
	m.transition(StateOptionsAnalysisFailed)
	return nil
}

func (m *Machine) onProceedToIdle(ev Event) error {
	switch m.current {
	case StateDataFetchFailed, StateStaleDataFromAction:
		// Hard failure: the active ticker binding is torn down so manual
		// actions cannot run against data that was never fetched.
		m.activeTicker = ""
	case StateFullAnalysisComplete:
		// Active ticker survives success so manual follow-ups know their
		// target.
	default:
		return m.reject(ev)
	}
	m.fullRun = false
	m.transition(StateIdle)
	return nil
}

func mustMarshal(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":"serialization failed","details":%q}`, err.Error())
	}
	return string(data)
}
