package analysis

import (
	"math"

	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/pkg/models"
)

// ComputePivotLevels calculates classic floor-trader pivot levels from the
// previous session's high, low, and close. Every level is rounded to two
// decimal places.
func ComputePivotLevels(input interfaces.PivotInput) *models.PivotLevels {
	high := input.PreviousDayHigh
	low := input.PreviousDayLow
	close := input.PreviousDayClose

	pp := (high + low + close) / 3

	return &models.PivotLevels{
		PivotPoint:  round2(pp),
		Support1:    round2(2*pp - high),
		Support2:    round2(pp - (high - low)),
		Support3:    round2(low - 2*(high-pp)),
		Resistance1: round2(2*pp - low),
		Resistance2: round2(pp + (high - low)),
		Resistance3: round2(high + 2*(pp-low)),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
