package pipeline

import (
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/pkg/models"
)

// EventType names every event the global pipeline machine accepts.
type EventType string

const (
	EventStartFullAnalysis         EventType = "START_FULL_ANALYSIS"
	EventTriggerManualKeyTakeaways EventType = "TRIGGER_MANUAL_KEY_TAKEAWAYS"
	EventTriggerManualOptionsWalls EventType = "TRIGGER_MANUAL_OPTIONS_ANALYSIS"
	EventInitializationComplete    EventType = "INITIALIZATION_COMPLETE"
	EventTriggerDataFetch          EventType = "TRIGGER_DATA_FETCH"
	EventFetchDataSuccess          EventType = "FETCH_DATA_SUCCESS"
	EventFetchDataFailure          EventType = "FETCH_DATA_FAILURE"
	EventStaleDataFromAction       EventType = "STALE_DATA_FROM_ACTION"
	EventInitiateAITASequence      EventType = "INITIATE_AI_TA_SEQUENCE"
	EventTriggerAITA               EventType = "TRIGGER_AI_TA"
	EventAITASuccess               EventType = "AI_TA_SUCCESS"
	EventAITAFailure               EventType = "AI_TA_FAILURE"
	EventFinalizeAutomatedPipeline EventType = "FINALIZE_AUTOMATED_PIPELINE"
	EventKeyTakeawaysSuccess       EventType = "KEY_TAKEAWAYS_SUCCESS"
	EventKeyTakeawaysFailure       EventType = "KEY_TAKEAWAYS_FAILURE"
	EventOptionsAnalysisSuccess    EventType = "OPTIONS_ANALYSIS_SUCCESS"
	EventOptionsAnalysisFailure    EventType = "OPTIONS_ANALYSIS_FAILURE"
	EventProceedToIdle             EventType = "PROCEED_TO_IDLE"
)

// StageError is the structured failure payload stored into an Error slot.
type StageError struct {
	Message string
	Detail  string
}

// Event is one message dispatched into the pipeline machine. Payload fields
// are set per event type; Epoch tags façade results so the machine can
// discard results from a superseded invocation.
type Event struct {
	Type   EventType
	Ticker string
	Epoch  uint64

	Fetch     *interfaces.FetchResult // FETCH_DATA_SUCCESS
	Pivots    *models.PivotLevels     // AI_TA_SUCCESS
	Takeaways *models.KeyTakeaways    // KEY_TAKEAWAYS_SUCCESS
	Walls     *models.OptionsWalls    // OPTIONS_ANALYSIS_SUCCESS
	Err       *StageError             // *_FAILURE

	// STALE_DATA_FROM_ACTION
	ExpectedTicker string
	FoundTicker    string
	RequestLog     string
	ResponseLog    string
}
