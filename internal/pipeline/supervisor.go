package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/services/analysis"
	"github.com/ternarybob/auspex/pkg/models"
)

// targetStates maps each user-facing trigger to the state the run is
// heading for, shown in the dashboard header until the machine arrives.
var targetStates = map[EventType]PipelineState{
	EventStartFullAnalysis:         StateFullAnalysisComplete,
	EventTriggerManualKeyTakeaways: StateFullAnalysisComplete,
	EventTriggerManualOptionsWalls: StateFullAnalysisComplete,
}

// TransitionPayload is published on every pipeline state change.
type TransitionPayload struct {
	State        PipelineState `json:"state"`
	Previous     PipelineState `json:"previous"`
	Target       PipelineState `json:"target,omitempty"`
	MainTab      MainTabState  `json:"mainTab"`
	Chat         ChatState     `json:"chat"`
	ActiveTicker string        `json:"activeTicker"`
}

// SlotsPayload is published whenever result slots may have changed.
type SlotsPayload struct {
	Slots map[string]string `json:"slots"`
}

// ChatPayload is published for every appended chat message.
type ChatPayload struct {
	Message models.ChatMessage `json:"message"`
}

// SessionSnapshot is a consistent read of everything the dashboard renders.
type SessionSnapshot struct {
	PipelineState  PipelineState        `json:"pipelineState"`
	TargetState    PipelineState        `json:"targetState,omitempty"`
	MainTabState   MainTabState         `json:"mainTabState"`
	ChatState      ChatState            `json:"chatState"`
	ActiveTicker   string               `json:"activeTicker"`
	InputTicker    string               `json:"inputTicker"`
	Slots          map[string]string    `json:"slots"`
	ChatHistory    []models.ChatMessage `json:"chatHistory"`
	AnalyzeEnabled bool                 `json:"analyzeEnabled"`
	TakeawaysOK    bool                 `json:"keyTakeawaysEnabled"`
	OptionsOK      bool                 `json:"optionsAnalysisEnabled"`
	ChatEnabled    bool                 `json:"chatEnabled"`
}

// Supervisor owns one dashboard session: the pipeline machine, the
// main-tab machine, the chatbot machine, and the chat transcript, all
// behind a single mutex. Façade goroutines re-enter through
// dispatchAsync; everything else comes in through the public methods.
type Supervisor struct {
	mu sync.Mutex

	machine *Machine
	mainTab *MainTab
	chat    *ChatFSM
	orch    *Orchestrator

	analysis interfaces.AnalysisService
	events   interfaces.EventService
	logger   arbor.ILogger

	chatTimeout time.Duration
	chatHistory []models.ChatMessage

	target    PipelineState
	hasTarget bool
}

// NewSupervisor wires a session supervisor over the two façade services.
func NewSupervisor(
	marketData interfaces.MarketDataService,
	analysisSvc interfaces.AnalysisService,
	events interfaces.EventService,
	cfg *common.PipelineConfig,
	logger arbor.ILogger,
) *Supervisor {
	if logger == nil {
		logger = common.GetLogger()
	}

	fetchTimeout := parseDurationOr(cfg.FetchTimeout, 60*time.Second)
	analysisTimeout := parseDurationOr(cfg.AnalysisTimeout, 3*time.Minute)
	chatTimeout := parseDurationOr(cfg.ChatTimeout, 2*time.Minute)

	return &Supervisor{
		machine:     NewMachine(),
		mainTab:     NewMainTab(cfg.DefaultTicker),
		chat:        NewChatFSM(),
		orch:        NewOrchestrator(marketData, analysisSvc, fetchTimeout, analysisTimeout, logger),
		analysis:    analysisSvc,
		events:      events,
		logger:      logger,
		chatTimeout: chatTimeout,
	}
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

// SetTicker updates the main-tab ticker input.
func (s *Supervisor) SetTicker(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainTab.SetInputTicker(raw)
}

// StartAnalysis runs the automated pipeline for the current ticker input.
func (s *Supervisor) StartAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mainTab.AnalyzeEnabled(s.machine.Current()) {
		return fmt.Errorf("analysis unavailable: ticker %q in state %s",
			s.mainTab.InputTicker(), s.machine.Current())
	}
	s.mainTab.RequestAnalysis()
	return s.dispatchLocked(Event{Type: EventStartFullAnalysis, Ticker: s.mainTab.InputTicker()})
}

// GenerateKeyTakeaways runs the manual key-takeaways analysis.
func (s *Supervisor) GenerateKeyTakeaways() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mainTab.KeyTakeawaysEnabled(s.machine.Current(), s.machine.Results()) {
		return fmt.Errorf("key takeaways unavailable for %q in state %s",
			s.mainTab.InputTicker(), s.machine.Current())
	}
	s.mainTab.RequestKeyTakeaways()
	return s.dispatchLocked(Event{Type: EventTriggerManualKeyTakeaways, Ticker: s.mainTab.InputTicker()})
}

// AnalyzeOptions runs the manual options-wall analysis.
func (s *Supervisor) AnalyzeOptions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mainTab.OptionsAnalysisEnabled(s.machine.Current(), s.machine.Results()) {
		return fmt.Errorf("options analysis unavailable for %q in state %s",
			s.mainTab.InputTicker(), s.machine.Current())
	}
	s.mainTab.RequestOptionsAnalysis()
	return s.dispatchLocked(Event{Type: EventTriggerManualOptionsWalls, Ticker: s.mainTab.InputTicker()})
}

// SetChatDraft updates the chat input text.
func (s *Supervisor) SetChatDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat.SetDraft(text)
}

// SubmitChat submits the given text as one chat turn. The user message is
// appended immediately; the reply, or an apology, arrives asynchronously.
func (s *Supervisor) SubmitChat(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chat.SetDraft(text)
	input, ok := s.chat.BeginSubmission(s.machine.Current().IsBusy())
	if !ok {
		return fmt.Errorf("chat submission refused")
	}

	s.appendChatLocked(models.ChatMessage{
		ID:      uuid.NewString(),
		Role:    models.ChatRoleUser,
		Content: input,
	})
	s.publishTransitionLocked()

	turn := s.chatTurnInputLocked(input)
	common.SafeGo(s.logger, "chat-turn", func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.chatTimeout)
		defer cancel()

		reply, err := s.analysis.ChatTurn(ctx, turn)
		s.concludeChat(reply, err)
	})

	return nil
}

// chatTurnInputLocked assembles the analysis context for one chat turn.
// Only Ready slots contribute; sentinel payloads stay out of the prompt.
func (s *Supervisor) chatTurnInputLocked(input string) interfaces.ChatTurnInput {
	rs := s.machine.Results()
	readyPayload := func(slot string) string {
		if v := rs.Get(slot); v.IsReady() {
			return v.Payload
		}
		return ""
	}

	history := make([]models.ChatMessage, len(s.chatHistory))
	copy(history, s.chatHistory)

	return interfaces.ChatTurnInput{
		Ticker:              s.machine.ActiveTicker(),
		StockSnapshotJSON:   readyPayload(SlotStockSnapshot),
		KeyTakeawaysJSON:    readyPayload(SlotAIKeyTakeaways),
		AnalyzedTAJSON:      readyPayload(SlotAIAnalyzedTA),
		OptionsAnalysisJSON: readyPayload(SlotAIOptionsWalls),
		ChatHistory:         history,
		UserInput:           input,
	}
}

// concludeChat appends the model reply or the matching apology and returns
// the chatbot machine to idle.
func (s *Supervisor) concludeChat(reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := reply
	switch {
	case errors.Is(err, analysis.ErrChatUnparsable):
		content = ChatParseApology
	case errors.Is(err, analysis.ErrChatEmptyResponse):
		content = ChatUnclearApology
	case err != nil:
		content = ChatErrorApology
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Chat turn failed")
	}

	s.appendChatLocked(models.ChatMessage{
		ID:      uuid.NewString(),
		Role:    models.ChatRoleModel,
		Content: content,
	})
	s.chat.ConcludeSubmission()
	s.publishTransitionLocked()
}

// appendChatLocked appends one message. A model reply identical to the
// last model message is dropped; retried LLM calls can deliver the same
// payload twice.
func (s *Supervisor) appendChatLocked(msg models.ChatMessage) {
	if msg.Role == models.ChatRoleModel && len(s.chatHistory) > 0 {
		last := s.chatHistory[len(s.chatHistory)-1]
		if last.Role == models.ChatRoleModel && last.Content == msg.Content {
			s.logger.Debug().Str("id", last.ID).Msg("Suppressed duplicate model reply")
			return
		}
	}

	s.chatHistory = append(s.chatHistory, msg)
	s.publishLocked(interfaces.EventChatMessage, ChatPayload{Message: msg})
}

// dispatchLocked applies one event and then settles: self-raised advances
// are dispatched in a loop and façade launches fire, until the machine
// rests in a state with no pending effect.
func (s *Supervisor) dispatchLocked(ev Event) error {
	if err := s.applyLocked(ev); err != nil {
		return err
	}
	if target, ok := targetStates[ev.Type]; ok {
		s.target = target
		s.hasTarget = true
	}
	s.settleLocked()
	return nil
}

func (s *Supervisor) applyLocked(ev Event) error {
	before := s.machine.Current()
	if err := s.machine.Dispatch(ev); err != nil {
		if errors.Is(err, ErrStaleResult) {
			s.logger.Debug().
				Str("event", string(ev.Type)).
				Int64("epoch", int64(ev.Epoch)).
				Msg("Discarded stale façade result")
			return err
		}
		s.logger.Warn().
			Str("event", string(ev.Type)).
			Str("state", string(before)).
			Msg("Event rejected")
		return err
	}

	after := s.machine.Current()
	if s.hasTarget && after == s.target {
		s.hasTarget = false
	}
	s.mainTab.ObserveGlobal(after, s.machine.ActiveTicker())

	if after != before {
		s.logger.Info().
			Str("event", string(ev.Type)).
			Str("from", string(before)).
			Str("to", string(after)).
			Str("ticker", s.machine.ActiveTicker()).
			Msg("Pipeline transition")
	}

	s.publishTransitionLocked()
	s.publishSlotsLocked()
	return nil
}

func (s *Supervisor) settleLocked() {
	for {
		ev, ok := s.orch.Step(s.machine, s.dispatchAsync)
		if !ok {
			return
		}
		if err := s.applyLocked(ev); err != nil {
			return
		}
	}
}

// dispatchAsync is the re-entry point for façade goroutines.
func (s *Supervisor) dispatchAsync(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyLocked(ev); err != nil {
		return
	}
	s.settleLocked()
}

func (s *Supervisor) publishTransitionLocked() {
	payload := TransitionPayload{
		State:        s.machine.Current(),
		Previous:     s.machine.Previous(),
		MainTab:      s.mainTab.State(),
		Chat:         s.chat.State(),
		ActiveTicker: s.machine.ActiveTicker(),
	}
	if s.hasTarget {
		payload.Target = s.target
	}
	s.publishLocked(interfaces.EventPipelineTransition, payload)
}

func (s *Supervisor) publishSlotsLocked() {
	s.publishLocked(interfaces.EventSlotUpdated, SlotsPayload{Slots: s.machine.Results().Snapshot()})
}

func (s *Supervisor) publishLocked(t interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: t, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(t)).Msg("Event publish failed")
	}
}

// Snapshot returns a consistent view of the whole session.
func (s *Supervisor) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.ChatMessage, len(s.chatHistory))
	copy(history, s.chatHistory)

	global := s.machine.Current()
	rs := s.machine.Results()

	snap := SessionSnapshot{
		PipelineState:  global,
		MainTabState:   s.mainTab.State(),
		ChatState:      s.chat.State(),
		ActiveTicker:   s.machine.ActiveTicker(),
		InputTicker:    s.mainTab.InputTicker(),
		Slots:          rs.Snapshot(),
		ChatHistory:    history,
		AnalyzeEnabled: s.mainTab.AnalyzeEnabled(global),
		TakeawaysOK:    s.mainTab.KeyTakeawaysEnabled(global, rs),
		OptionsOK:      s.mainTab.OptionsAnalysisEnabled(global, rs),
		ChatEnabled:    s.chat.State() != ChatSubmittingMessage && !global.IsBusy(),
	}
	if s.hasTarget {
		snap.TargetState = s.target
	}
	return snap
}

// ChatHistory returns a copy of the transcript.
func (s *Supervisor) ChatHistory() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.chatHistory))
	copy(out, s.chatHistory)
	return out
}
