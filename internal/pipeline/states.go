// Package pipeline implements the analysis pipeline: a global state machine
// sequencing data fetch and AI analysis stages, a main-tab machine mapping
// pipeline progress to UI affordances, a chatbot machine serializing chat
// turns, and a supervisor that owns all three plus the result slots.
package pipeline

// PipelineState is the global pipeline machine's state.
type PipelineState string

const (
	StateIdle                     PipelineState = "IDLE"
	StateInitializingAnalysis     PipelineState = "INITIALIZING_ANALYSIS"
	StateAwaitingDataFetchTrigger PipelineState = "AWAITING_DATA_FETCH_TRIGGER"
	StateFetchingData             PipelineState = "FETCHING_DATA"
	StateDataFetchSucceeded       PipelineState = "DATA_FETCH_SUCCEEDED"
	StateDataFetchFailed          PipelineState = "DATA_FETCH_FAILED"
	StateStaleDataFromAction      PipelineState = "STALE_DATA_FROM_ACTION_ERROR"
	StateAwaitingAITATrigger      PipelineState = "AWAITING_AI_TA_TRIGGER"
	StateAnalyzingTA              PipelineState = "ANALYZING_TA"
	StateAITASucceeded            PipelineState = "AI_TA_SUCCEEDED"
	StateAITAFailed               PipelineState = "AI_TA_FAILED"
	StateGeneratingKeyTakeaways   PipelineState = "GENERATING_KEY_TAKEAWAYS"
	StateKeyTakeawaysSucceeded    PipelineState = "KEY_TAKEAWAYS_SUCCEEDED"
	StateKeyTakeawaysFailed       PipelineState = "KEY_TAKEAWAYS_FAILED"
	StateAnalyzingOptions         PipelineState = "ANALYZING_OPTIONS"
	StateOptionsAnalysisSucceeded PipelineState = "OPTIONS_ANALYSIS_SUCCEEDED"
	StateOptionsAnalysisFailed    PipelineState = "OPTIONS_ANALYSIS_FAILED"
	StateFullAnalysisComplete     PipelineState = "FULL_ANALYSIS_COMPLETE"
)

// IsWorking reports whether the state represents an in-flight façade call.
func (s PipelineState) IsWorking() bool {
	switch s {
	case StateFetchingData, StateAnalyzingTA, StateGeneratingKeyTakeaways, StateAnalyzingOptions:
		return true
	}
	return false
}

// IsFailure reports whether the state is one of the hard-failure states
// whose return to idle clears the active ticker.
func (s PipelineState) IsFailure() bool {
	switch s {
	case StateDataFetchFailed, StateStaleDataFromAction:
		return true
	}
	return false
}

// IsBusy reports whether the pipeline is in any non-idle, non-complete
// state. Chat submissions are refused while busy.
func (s PipelineState) IsBusy() bool {
	return s != StateIdle && s != StateFullAnalysisComplete
}

// MainTabState is the main-tab machine's state.
type MainTabState string

const (
	TabIdle                           MainTabState = "IDLE"
	TabInputValid                     MainTabState = "INPUT_VALID"
	TabAutomatedPipelineRequested     MainTabState = "AUTOMATED_PIPELINE_REQUESTED"
	TabAutomatedPipelineInProgress    MainTabState = "AUTOMATED_PIPELINE_IN_PROGRESS"
	TabManualActionsEnabled           MainTabState = "MANUAL_ACTIONS_ENABLED"
	TabManualKeyTakeawaysRequested    MainTabState = "MANUAL_KEY_TAKEAWAYS_REQUESTED"
	TabManualKeyTakeawaysPending      MainTabState = "MANUAL_KEY_TAKEAWAYS_PENDING"
	TabManualOptionsAnalysisRequested MainTabState = "MANUAL_OPTIONS_ANALYSIS_REQUESTED"
	TabManualOptionsAnalysisPending   MainTabState = "MANUAL_OPTIONS_ANALYSIS_PENDING"
)

// ChatState is the chatbot machine's state.
type ChatState string

const (
	ChatIdle                ChatState = "IDLE"
	ChatProcessingUserInput ChatState = "PROCESSING_USER_INPUT"
	ChatSubmittingMessage   ChatState = "SUBMITTING_MESSAGE"
)
