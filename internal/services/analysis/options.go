package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/pkg/models"
)

// AnalyzeOptionsChain identifies call and put walls in an options chain.
// Thin or inactive chains return empty wall arrays rather than an error;
// "no signal" is a valid outcome distinct from a failed computation.
func (s *Service) AnalyzeOptionsChain(ctx context.Context, input interfaces.OptionsAnalysisInput) (*models.OptionsWalls, error) {
	empty := &models.OptionsWalls{
		CallWalls: []models.WallDetail{},
		PutWalls:  []models.WallDetail{},
	}

	var chain models.OptionsChain
	if err := json.Unmarshal([]byte(input.OptionsChainJSON), &chain); err != nil {
		s.logger.Warn().
			Str("ticker", input.Ticker).
			Err(err).
			Msg("Options chain payload unparsable, returning empty walls")
		return empty, nil
	}

	// A chain this thin cannot carry a meaningful wall.
	if len(chain.Contracts) < 3 {
		s.logger.Warn().
			Str("ticker", input.Ticker).
			Int("contracts", len(chain.Contracts)).
			Msg("Options chain has fewer than 3 contracts, returning empty walls")
		return empty, nil
	}

	var totalOI, totalVolume float64
	for _, row := range chain.Contracts {
		if row.Call != nil {
			totalOI += row.Call.OpenInterest
			totalVolume += row.Call.Volume
		}
		if row.Put != nil {
			totalOI += row.Put.OpenInterest
			totalVolume += row.Put.Volume
		}
	}
	if totalOI == 0 && totalVolume == 0 {
		s.logger.Warn().
			Str("ticker", input.Ticker).
			Msg("Options chain has zero open interest and volume, returning empty walls")
		return empty, nil
	}

	raw, err := s.generate(ctx, "options_walls", map[string]string{
		"ticker":        input.Ticker,
		"options_chain": input.OptionsChainJSON,
		"current_price": strconv.FormatFloat(input.CurrentUnderlyingPrice, 'f', 2, 64),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("options wall analysis failed: %w", err)
	}

	var out models.OptionsWalls
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("options wall output is not valid JSON: %w", err)
	}

	// Cap at three walls per side regardless of what the model returned.
	if len(out.CallWalls) > 3 {
		out.CallWalls = out.CallWalls[:3]
	}
	if len(out.PutWalls) > 3 {
		out.PutWalls = out.PutWalls[:3]
	}
	if out.CallWalls == nil {
		out.CallWalls = []models.WallDetail{}
	}
	if out.PutWalls == nil {
		out.PutWalls = []models.WallDetail{}
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("options wall output failed validation: %w", err)
	}

	s.logger.Debug().
		Str("ticker", input.Ticker).
		Int("call_walls", len(out.CallWalls)).
		Int("put_walls", len(out.PutWalls)).
		Msg("Analyzed options chain")

	return &out, nil
}
