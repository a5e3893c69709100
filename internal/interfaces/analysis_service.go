package interfaces

import (
	"context"

	"github.com/ternarybob/auspex/pkg/models"
)

// PivotInput is the previous session's high/low/close used for pivot math
type PivotInput struct {
	PreviousDayHigh  float64 `json:"previousDayHigh"`
	PreviousDayLow   float64 `json:"previousDayLow"`
	PreviousDayClose float64 `json:"previousDayClose"`
}

// TakeawaysInput is the full context for the key-takeaways analysis
type TakeawaysInput struct {
	Ticker            string `json:"ticker"`
	StockSnapshotJSON string `json:"stockSnapshotJson"`
	StandardTAsJSON   string `json:"standardTasJson"`
	AnalyzedTAJSON    string `json:"aiAnalyzedTaJson"`
	MarketStatusJSON  string `json:"marketStatusJson"`
}

// OptionsAnalysisInput is the context for call/put wall detection
type OptionsAnalysisInput struct {
	Ticker                 string  `json:"ticker"`
	OptionsChainJSON       string  `json:"optionsChainJson"`
	CurrentUnderlyingPrice float64 `json:"currentUnderlyingPrice"`
}

// ChatTurnInput is one user turn plus the analysis context it may draw on
type ChatTurnInput struct {
	Ticker              string               `json:"ticker"`
	StockSnapshotJSON   string               `json:"stockSnapshotJson"`
	KeyTakeawaysJSON    string               `json:"aiKeyTakeawaysJson"`
	AnalyzedTAJSON      string               `json:"aiAnalyzedTaJson"`
	OptionsAnalysisJSON string               `json:"aiOptionsAnalysisJson,omitempty"`
	ChatHistory         []models.ChatMessage `json:"chatHistory,omitempty"`
	UserInput           string               `json:"userInput"`
}

// AnalysisService is the boundary to the AI analysis flows. Every method
// is an external effect with network latency and occasionally malformed
// output; callers convert errors into pipeline failure events.
type AnalysisService interface {
	// AnalyzeTA computes daily pivot points from prior-day HLC prices.
	AnalyzeTA(ctx context.Context, input PivotInput) (*models.PivotLevels, error)

	// GenerateKeyTakeaways produces the five-category insight summary.
	// All five categories are populated in any successful result.
	GenerateKeyTakeaways(ctx context.Context, input TakeawaysInput) (*models.KeyTakeaways, error)

	// AnalyzeOptionsChain identifies call/put walls. A thin or inactive
	// chain yields empty wall arrays, not an error.
	AnalyzeOptionsChain(ctx context.Context, input OptionsAnalysisInput) (*models.OptionsWalls, error)

	// ChatTurn answers one user message with the analysis context.
	ChatTurn(ctx context.Context, input ChatTurnInput) (string, error)
}
