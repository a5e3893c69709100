package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/pkg/models"
)

// allowedSentiments mirrors the sentiment enum accepted on takeaways.
var allowedSentiments = map[string]bool{
	"bullish": true, "bearish": true, "neutral": true,
	"positive": true, "negative": true,
	"high": true, "low": true,
	"increasing": true, "decreasing": true,
	"strong": true, "weak": true, "moderate": true, "stable": true,
}

// GenerateKeyTakeaways produces the five-category insight summary. Any
// category the model left out is filled with a neutral default so the
// result always carries all five.
func (s *Service) GenerateKeyTakeaways(ctx context.Context, input interfaces.TakeawaysInput) (*models.KeyTakeaways, error) {
	raw, err := s.generate(ctx, "key_takeaways", map[string]string{
		"ticker":        input.Ticker,
		"snapshot":      input.StockSnapshotJSON,
		"standard_ta":   input.StandardTAsJSON,
		"ai_ta":         input.AnalyzedTAJSON,
		"market_status": input.MarketStatusJSON,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("key takeaways generation failed: %w", err)
	}

	var out models.KeyTakeaways
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("key takeaways output is not valid JSON: %w", err)
	}

	applyTakeawayDefaults(&out, input.Ticker)

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("key takeaways output failed validation: %w", err)
	}

	s.logger.Debug().
		Str("ticker", input.Ticker).
		Str("price_action_sentiment", out.PriceAction.Sentiment).
		Msg("Generated key takeaways")

	return &out, nil
}

// applyTakeawayDefaults fills empty categories with the standard default
// message, normalizes sentiments, and replaces a too-short volatility
// takeaway with its specific placeholder.
func applyTakeawayDefaults(out *models.KeyTakeaways, ticker string) {
	fill := func(t *models.Takeaway, category string) {
		if strings.TrimSpace(t.Takeaway) == "" {
			t.Takeaway = defaultTakeawayText(category, ticker)
			t.Sentiment = "neutral"
			return
		}
		if !allowedSentiments[strings.ToLower(t.Sentiment)] {
			t.Sentiment = "neutral"
		} else {
			t.Sentiment = strings.ToLower(t.Sentiment)
		}
	}

	fill(&out.PriceAction, "price action")
	fill(&out.Trend, "trend")
	fill(&out.Volatility, "volatility")
	fill(&out.Momentum, "momentum")
	fill(&out.Patterns, "patterns")

	// Volatility needs substance. A takeaway under five words is treated
	// as a non-answer and replaced with the explicit placeholder.
	if len(strings.Fields(out.Volatility.Takeaway)) < 5 {
		out.Volatility.Takeaway = fmt.Sprintf(
			"Volatility analysis for %s was not sufficiently detailed by the AI. Please refer to specific volatility indicators or market context.",
			ticker)
		if out.Volatility.Sentiment == "" {
			out.Volatility.Sentiment = "neutral"
		}
	}
}

func defaultTakeawayText(category, ticker string) string {
	return fmt.Sprintf("AI analysis for %s for %s was incomplete or not provided by the AI model.", category, ticker)
}
