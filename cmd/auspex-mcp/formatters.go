package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/pkg/models"
)

// formatSnapshot formats the session state as markdown
func formatSnapshot(snap *pipeline.SessionSnapshot) string {
	var sb strings.Builder
	sb.WriteString("## Session State\n\n")
	sb.WriteString(fmt.Sprintf("**Pipeline:** %s\n", snap.PipelineState))
	if snap.TargetState != "" {
		sb.WriteString(fmt.Sprintf("**Target:** %s\n", snap.TargetState))
	}
	sb.WriteString(fmt.Sprintf("**Main tab:** %s\n", snap.MainTabState))
	sb.WriteString(fmt.Sprintf("**Chatbot:** %s\n", snap.ChatState))
	if snap.ActiveTicker != "" {
		sb.WriteString(fmt.Sprintf("**Active ticker:** %s\n", snap.ActiveTicker))
	}
	sb.WriteString("\n**Enabled actions:**\n")
	sb.WriteString(fmt.Sprintf("- analyze: %v\n", snap.AnalyzeEnabled))
	sb.WriteString(fmt.Sprintf("- key takeaways: %v\n", snap.TakeawaysOK))
	sb.WriteString(fmt.Sprintf("- options analysis: %v\n", snap.OptionsOK))
	sb.WriteString(fmt.Sprintf("- chat: %v\n", snap.ChatEnabled))

	sb.WriteString("\n**Slots:**\n")
	for _, name := range []string{
		pipeline.SlotMarketStatus, pipeline.SlotStockSnapshot, pipeline.SlotStandardTAs,
		pipeline.SlotOptionsChain, pipeline.SlotAIAnalyzedTA, pipeline.SlotAIKeyTakeaways,
		pipeline.SlotAIOptionsWalls,
	} {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", name, slotStatus(snap.Slots[name])))
	}
	return sb.String()
}

// slotStatus reduces a slot payload to a one-word status for the overview
func slotStatus(payload string) string {
	if payload == "" {
		return "missing"
	}
	if pipeline.DataReady(payload) {
		return "ready"
	}
	var sentinel struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload), &sentinel); err == nil && sentinel.Status != "" {
		if sentinel.Message != "" {
			return fmt.Sprintf("%s (%s)", sentinel.Status, sentinel.Message)
		}
		return sentinel.Status
	}
	return "unknown"
}

// formatAnalysisResults formats a completed run: snapshot summary, pivot
// levels, and the AI technical analysis verdict.
func formatAnalysisResults(ctx context.Context, client *apiClient, snap *pipeline.SessionSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Analysis Results for %s\n\n", snap.ActiveTicker))

	if payload, ok := snap.Slots[pipeline.SlotStockSnapshot]; ok && pipeline.DataReady(payload) {
		var stock models.StockSnapshot
		if json.Unmarshal([]byte(payload), &stock) == nil {
			sb.WriteString("## Market Snapshot\n")
			sb.WriteString(fmt.Sprintf("**Price:** %.2f (%+.2f, %+.2f%%)\n", stock.CurrentPrice, stock.TodaysChange, stock.TodaysChangePerc))
			if stock.PrevDay != nil {
				sb.WriteString(fmt.Sprintf("**Previous day:** H %.2f / L %.2f / C %.2f\n", stock.PrevDay.High, stock.PrevDay.Low, stock.PrevDay.Close))
			}
			sb.WriteString("\n")
		}
	}

	if payload, ok := snap.Slots[pipeline.SlotAIAnalyzedTA]; ok && pipeline.DataReady(payload) {
		var pivots models.PivotLevels
		if json.Unmarshal([]byte(payload), &pivots) == nil {
			sb.WriteString(formatPivotLevels(&pivots))
			sb.WriteString("\n")
		}
	} else if ok {
		sb.WriteString(fmt.Sprintf("## Technical Analysis\nNot available: %s\n\n", slotStatus(payload)))
	}

	sb.WriteString("Use generate_key_takeaways, analyze_options, or ask_assistant for deeper analysis.\n")
	return sb.String()
}

// formatPivotLevels formats pivot levels as markdown
func formatPivotLevels(p *models.PivotLevels) string {
	var sb strings.Builder
	sb.WriteString("## Pivot Levels\n")
	sb.WriteString(fmt.Sprintf("**R3:** %.2f\n", p.Resistance3))
	sb.WriteString(fmt.Sprintf("**R2:** %.2f\n", p.Resistance2))
	sb.WriteString(fmt.Sprintf("**R1:** %.2f\n", p.Resistance1))
	sb.WriteString(fmt.Sprintf("**PP:** %.2f\n", p.PivotPoint))
	sb.WriteString(fmt.Sprintf("**S1:** %.2f\n", p.Support1))
	sb.WriteString(fmt.Sprintf("**S2:** %.2f\n", p.Support2))
	sb.WriteString(fmt.Sprintf("**S3:** %.2f\n", p.Support3))
	return sb.String()
}

// formatKeyTakeaways formats the five-category summary as markdown
func formatKeyTakeaways(k *models.KeyTakeaways) string {
	var sb strings.Builder
	sb.WriteString("## Key Takeaways\n\n")
	for _, row := range []struct {
		label string
		t     models.Takeaway
	}{
		{"Price Action", k.PriceAction},
		{"Trend", k.Trend},
		{"Volatility", k.Volatility},
		{"Momentum", k.Momentum},
		{"Patterns", k.Patterns},
	} {
		sb.WriteString(fmt.Sprintf("**%s** (%s): %s\n\n", row.label, row.t.Sentiment, row.t.Takeaway))
	}
	return sb.String()
}

// formatOptionsWalls formats call/put walls as markdown
func formatOptionsWalls(w *models.OptionsWalls) string {
	var sb strings.Builder
	sb.WriteString("## Options Walls\n\n")

	if len(w.CallWalls) == 0 && len(w.PutWalls) == 0 {
		sb.WriteString("No significant walls detected.\n")
		return sb.String()
	}

	if len(w.CallWalls) > 0 {
		sb.WriteString("### Call Walls (resistance)\n")
		for _, wall := range w.CallWalls {
			sb.WriteString(fmt.Sprintf("- Strike %.2f (OI %.0f, Vol %.0f)\n", wall.Strike, wall.OpenInterest, wall.Volume))
		}
		sb.WriteString("\n")
	}
	if len(w.PutWalls) > 0 {
		sb.WriteString("### Put Walls (support)\n")
		for _, wall := range w.PutWalls {
			sb.WriteString(fmt.Sprintf("- Strike %.2f (OI %.0f, Vol %.0f)\n", wall.Strike, wall.OpenInterest, wall.Volume))
		}
	}
	return sb.String()
}
