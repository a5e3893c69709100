package models

import (
	"github.com/go-playground/validator/v10"
)

// PivotLevels are classic daily pivot points derived from the previous
// session's high, low and close.
type PivotLevels struct {
	PivotPoint  float64 `json:"pivotPoint"`
	Support1    float64 `json:"support1"`
	Support2    float64 `json:"support2"`
	Support3    float64 `json:"support3"`
	Resistance1 float64 `json:"resistance1"`
	Resistance2 float64 `json:"resistance2"`
	Resistance3 float64 `json:"resistance3"`
}

// Takeaway is one model-generated insight with an associated sentiment
type Takeaway struct {
	Takeaway  string `json:"takeaway" validate:"required"`
	Sentiment string `json:"sentiment" validate:"required,oneof=bullish bearish neutral positive negative high low increasing decreasing strong weak moderate stable"`
}

// KeyTakeaways is the five-category analysis summary. All categories are
// always populated; callers fill gaps with neutral defaults rather than
// leaving a category absent.
type KeyTakeaways struct {
	PriceAction Takeaway `json:"priceAction" validate:"required"`
	Trend       Takeaway `json:"trend" validate:"required"`
	Volatility  Takeaway `json:"volatility" validate:"required"`
	Momentum    Takeaway `json:"momentum" validate:"required"`
	Patterns    Takeaway `json:"patterns" validate:"required"`
}

// Validate validates the takeaways using go-playground/validator.
func (k *KeyTakeaways) Validate() error {
	validate := validator.New()
	return validate.Struct(k)
}

// WallDetail identifies one strike with concentrated open interest or
// volume, read as a support/resistance level.
type WallDetail struct {
	Strike       float64 `json:"strike" validate:"required"`
	OpenInterest float64 `json:"openInterest"`
	Volume       float64 `json:"volume,omitempty"`
	Type         string  `json:"type" validate:"required,oneof=call put"`
}

// OptionsWalls holds up to three call walls and three put walls ordered
// by significance. Empty arrays are a valid "no signal" outcome.
type OptionsWalls struct {
	CallWalls []WallDetail `json:"callWalls" validate:"max=3,dive"`
	PutWalls  []WallDetail `json:"putWalls" validate:"max=3,dive"`
}

// Validate validates the wall detection output using go-playground/validator.
func (o *OptionsWalls) Validate() error {
	validate := validator.New()
	return validate.Struct(o)
}
