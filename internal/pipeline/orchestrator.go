package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/pkg/models"
)

// Orchestrator drives the pipeline machine's effects: it self-raises the
// trivial "awaiting trigger" advances and invokes each façade exactly once
// per working-state entry. A per-stage record of the last launched epoch
// guards against duplicate invocation, and also relaunches after a
// retrigger bumped the epoch.
type Orchestrator struct {
	marketData      interfaces.MarketDataService
	analysis        interfaces.AnalysisService
	logger          arbor.ILogger
	fetchTimeout    time.Duration
	analysisTimeout time.Duration

	lastLaunched map[PipelineState]uint64
}

// NewOrchestrator creates an orchestrator over the two façade services.
func NewOrchestrator(
	marketData interfaces.MarketDataService,
	analysis interfaces.AnalysisService,
	fetchTimeout, analysisTimeout time.Duration,
	logger arbor.ILogger,
) *Orchestrator {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Orchestrator{
		marketData:      marketData,
		analysis:        analysis,
		logger:          logger,
		fetchTimeout:    fetchTimeout,
		analysisTimeout: analysisTimeout,
		lastLaunched:    make(map[PipelineState]uint64),
	}
}

// Step inspects the machine and either returns the next synchronous event
// to dispatch (ok=true), or performs a launch side effect and returns
// ok=false. The caller loops Dispatch+Step until ok is false with nothing
// left to do. asyncDispatch delivers façade results back into the
// supervisor from worker goroutines.
func (o *Orchestrator) Step(m *Machine, asyncDispatch func(Event)) (Event, bool) {
	switch m.Current() {
	case StateInitializingAnalysis:
		return Event{Type: EventInitializationComplete}, true

	case StateAwaitingDataFetchTrigger:
		return Event{Type: EventTriggerDataFetch}, true

	case StateDataFetchSucceeded:
		if m.FullRun() {
			return Event{Type: EventInitiateAITASequence}, true
		}

	case StateAwaitingAITATrigger:
		return Event{Type: EventTriggerAITA}, true

	case StateAITASucceeded, StateAITAFailed:
		if m.FullRun() {
			return Event{Type: EventFinalizeAutomatedPipeline}, true
		}

	case StateKeyTakeawaysSucceeded, StateKeyTakeawaysFailed,
		StateOptionsAnalysisSucceeded, StateOptionsAnalysisFailed:
		return Event{Type: EventFinalizeAutomatedPipeline}, true

	case StateDataFetchFailed, StateStaleDataFromAction, StateFullAnalysisComplete:
		return Event{Type: EventProceedToIdle}, true

	case StateFetchingData:
		o.launchFetch(m, asyncDispatch)

	case StateAnalyzingTA:
		return o.stepAITA(m, asyncDispatch)

	case StateGeneratingKeyTakeaways:
		return o.stepKeyTakeaways(m, asyncDispatch)

	case StateAnalyzingOptions:
		return o.stepOptionsAnalysis(m, asyncDispatch)
	}

	return Event{}, false
}

// shouldLaunch reports whether the current epoch's façade call for a
// working state has not been started yet.
func (o *Orchestrator) shouldLaunch(m *Machine, state PipelineState) bool {
	return o.lastLaunched[state] != m.Epoch()
}

func (o *Orchestrator) markLaunched(m *Machine, state PipelineState) {
	o.lastLaunched[state] = m.Epoch()
}

func (o *Orchestrator) launchFetch(m *Machine, asyncDispatch func(Event)) {
	if !o.shouldLaunch(m, StateFetchingData) {
		return
	}
	o.markLaunched(m, StateFetchingData)

	ticker := m.ActiveTicker()
	epoch := m.Epoch()
	m.RecordRequest(SlotFetchRequest, mustMarshal(map[string]string{"ticker": ticker}))

	o.logger.Info().Str("ticker", ticker).Int64("epoch", int64(epoch)).Msg("Launching market data fetch")

	common.SafeGo(o.logger, "pipeline-fetch", func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.fetchTimeout)
		defer cancel()

		result, err := o.marketData.FetchStockData(ctx, ticker)
		if err != nil {
			var stale *interfaces.StaleTickerError
			if errors.As(err, &stale) {
				asyncDispatch(Event{
					Type:           EventStaleDataFromAction,
					Epoch:          epoch,
					ExpectedTicker: stale.Expected,
					FoundTicker:    stale.Got,
					RequestLog:     stale.RequestLogJSON,
					ResponseLog:    stale.ResponseLogJSON,
				})
				return
			}
			asyncDispatch(Event{
				Type:  EventFetchDataFailure,
				Epoch: epoch,
				Err:   &StageError{Message: "Failed to fetch market data", Detail: err.Error()},
			})
			return
		}
		asyncDispatch(Event{Type: EventFetchDataSuccess, Epoch: epoch, Fetch: result})
	})
}

func (o *Orchestrator) stepAITA(m *Machine, asyncDispatch func(Event)) (Event, bool) {
	if !o.shouldLaunch(m, StateAnalyzingTA) {
		return Event{}, false
	}

	snapshot, ok := parseSnapshot(m.Results().Get(SlotStockSnapshot))
	if !ok || snapshot.PrevDay == nil {
		// Synthesized failure: the façade is never called with missing data.
		o.markLaunched(m, StateAnalyzingTA)
		return Event{
			Type: EventAITAFailure,
			Err:  &StageError{Message: "Snapshot data missing for AI TA", Detail: "consistency"},
		}, true
	}

	o.markLaunched(m, StateAnalyzingTA)
	epoch := m.Epoch()
	input := interfaces.PivotInput{
		PreviousDayHigh:  snapshot.PrevDay.High,
		PreviousDayLow:   snapshot.PrevDay.Low,
		PreviousDayClose: snapshot.PrevDay.Close,
	}
	m.RecordRequest(SlotAITARequest, mustMarshal(input))

	common.SafeGo(o.logger, "pipeline-ai-ta", func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.analysisTimeout)
		defer cancel()

		levels, err := o.analysis.AnalyzeTA(ctx, input)
		if err != nil {
			asyncDispatch(Event{
				Type:  EventAITAFailure,
				Epoch: epoch,
				Err:   &StageError{Message: "AI technical analysis failed", Detail: err.Error()},
			})
			return
		}
		asyncDispatch(Event{Type: EventAITASuccess, Epoch: epoch, Pivots: levels})
	})

	return Event{}, false
}

func (o *Orchestrator) stepKeyTakeaways(m *Machine, asyncDispatch func(Event)) (Event, bool) {
	if !o.shouldLaunch(m, StateGeneratingKeyTakeaways) {
		return Event{}, false
	}

	rs := m.Results()
	if !KeyTakeawaysReady(rs) {
		o.markLaunched(m, StateGeneratingKeyTakeaways)
		return Event{
			Type: EventKeyTakeawaysFailure,
			Err:  &StageError{Message: "Prerequisite data missing for Key Takeaways", Detail: "readiness"},
		}, true
	}

	o.markLaunched(m, StateGeneratingKeyTakeaways)
	epoch := m.Epoch()
	input := interfaces.TakeawaysInput{
		Ticker:            m.ActiveTicker(),
		StockSnapshotJSON: rs.Get(SlotStockSnapshot).Payload,
		StandardTAsJSON:   rs.Get(SlotStandardTAs).Payload,
		AnalyzedTAJSON:    rs.Get(SlotAIAnalyzedTA).Payload,
		MarketStatusJSON:  rs.Get(SlotMarketStatus).Payload,
	}
	m.RecordRequest(SlotTakeawaysReq, mustMarshal(input))

	common.SafeGo(o.logger, "pipeline-key-takeaways", func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.analysisTimeout)
		defer cancel()

		takeaways, err := o.analysis.GenerateKeyTakeaways(ctx, input)
		if err != nil {
			asyncDispatch(Event{
				Type:  EventKeyTakeawaysFailure,
				Epoch: epoch,
				Err:   &StageError{Message: "Key takeaways generation failed", Detail: err.Error()},
			})
			return
		}
		asyncDispatch(Event{Type: EventKeyTakeawaysSuccess, Epoch: epoch, Takeaways: takeaways})
	})

	return Event{}, false
}

func (o *Orchestrator) stepOptionsAnalysis(m *Machine, asyncDispatch func(Event)) (Event, bool) {
	if !o.shouldLaunch(m, StateAnalyzingOptions) {
		return Event{}, false
	}

	rs := m.Results()
	if !OptionsAnalysisReady(rs) {
		o.markLaunched(m, StateAnalyzingOptions)
		return Event{
			Type: EventOptionsAnalysisFailure,
			Err:  &StageError{Message: "Prerequisite data missing for Options Analysis", Detail: "readiness"},
		}, true
	}

	snapshot, _ := parseSnapshot(rs.Get(SlotStockSnapshot))
	var currentPrice float64
	if snapshot != nil {
		currentPrice = snapshot.CurrentPrice
	}

	o.markLaunched(m, StateAnalyzingOptions)
	epoch := m.Epoch()
	input := interfaces.OptionsAnalysisInput{
		Ticker:                 m.ActiveTicker(),
		OptionsChainJSON:       rs.Get(SlotOptionsChain).Payload,
		CurrentUnderlyingPrice: currentPrice,
	}
	m.RecordRequest(SlotOptionsWallsReq, mustMarshal(input))

	common.SafeGo(o.logger, "pipeline-options-analysis", func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.analysisTimeout)
		defer cancel()

		walls, err := o.analysis.AnalyzeOptionsChain(ctx, input)
		if err != nil {
			asyncDispatch(Event{
				Type:  EventOptionsAnalysisFailure,
				Epoch: epoch,
				Err:   &StageError{Message: "Options wall analysis failed", Detail: err.Error()},
			})
			return
		}
		asyncDispatch(Event{Type: EventOptionsAnalysisSuccess, Epoch: epoch, Walls: walls})
	})

	return Event{}, false
}

// parseSnapshot decodes a Ready snapshot slot into the domain model.
func parseSnapshot(v SlotValue) (*models.StockSnapshot, bool) {
	if !v.IsReady() {
		return nil, false
	}
	var snap models.StockSnapshot
	if err := json.Unmarshal([]byte(v.Payload), &snap); err != nil {
		return nil, false
	}
	return &snap, true
}
