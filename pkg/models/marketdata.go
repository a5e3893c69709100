package models

// PriceBar represents a single OHLCV aggregate from the market data provider.
// Field names mirror the provider's wire format.
type PriceBar struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	VWAP      float64 `json:"vw,omitempty"`
	Timestamp int64   `json:"t,omitempty"`
	Trades    int64   `json:"n,omitempty"`
}

// MarketStatus describes the overall market session state
type MarketStatus struct {
	Market     string            `json:"market"`
	EarlyHours bool              `json:"earlyHours"`
	LateHours  bool              `json:"lateHours"`
	ServerTime string            `json:"serverTime"`
	Exchanges  map[string]string `json:"exchanges,omitempty"`
	Currencies map[string]string `json:"currencies,omitempty"`
}

// StockSnapshot is the current trading picture for one ticker
type StockSnapshot struct {
	Ticker           string    `json:"ticker"`
	Day              *PriceBar `json:"day,omitempty"`
	PrevDay          *PriceBar `json:"prevDay,omitempty"`
	Min              *PriceBar `json:"min,omitempty"`
	TodaysChange     float64   `json:"todaysChange"`
	TodaysChangePerc float64   `json:"todaysChangePerc"`
	Updated          int64     `json:"updated,omitempty"`
	CurrentPrice     float64   `json:"currentPrice"`
}

// MACDValue holds the MACD line, signal line and histogram
type MACDValue struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// VWAPValue holds day and minute level volume weighted average prices
type VWAPValue struct {
	Day    float64 `json:"day,omitempty"`
	Minute float64 `json:"minute,omitempty"`
}

// IndicatorSet groups the standard technical indicators fetched per ticker.
// Map keys are the indicator window sizes ("7", "14", "200").
type IndicatorSet struct {
	RSI   map[string]float64 `json:"RSI,omitempty"`
	MACD  *MACDValue         `json:"MACD,omitempty"`
	VWAP  *VWAPValue         `json:"VWAP,omitempty"`
	EMA   map[string]float64 `json:"EMA,omitempty"`
	SMA   map[string]float64 `json:"SMA,omitempty"`
	Error string             `json:"error,omitempty"`
}

// OptionContract is a streamlined view of one option contract at a strike
type OptionContract struct {
	StrikePrice    float64 `json:"strike_price"`
	OptionType     string  `json:"option_type"`
	IV             float64 `json:"iv,omitempty"`
	LastPrice      float64 `json:"last_price,omitempty"`
	Change         float64 `json:"change,omitempty"`
	PercentChange  float64 `json:"percent_change,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
	OpenInterest   float64 `json:"open_interest,omitempty"`
	BreakEvenPrice float64 `json:"break_even_price,omitempty"`
	Delta          float64 `json:"delta,omitempty"`
	Gamma          float64 `json:"gamma,omitempty"`
	Theta          float64 `json:"theta,omitempty"`
	Vega           float64 `json:"vega,omitempty"`
	Bid            float64 `json:"bid,omitempty"`
	Ask            float64 `json:"ask,omitempty"`
}

// OptionsRow pairs the call and put contracts at one strike
type OptionsRow struct {
	Strike float64         `json:"strike"`
	Call   *OptionContract `json:"call,omitempty"`
	Put    *OptionContract `json:"put,omitempty"`
}

// OptionsChain is the trimmed option chain around the underlying price
type OptionsChain struct {
	Ticker          string       `json:"ticker"`
	ExpirationDate  string       `json:"expiration_date"`
	Contracts       []OptionsRow `json:"contracts"`
	UnderlyingPrice float64      `json:"underlying_price"`
}

// MarketDataBundle aggregates everything one fetch produces for a ticker
type MarketDataBundle struct {
	Ticker        string         `json:"ticker"`
	MarketStatus  *MarketStatus  `json:"marketStatus,omitempty"`
	StockSnapshot *StockSnapshot `json:"stockSnapshot,omitempty"`
	Indicators    *IndicatorSet  `json:"technicalIndicators,omitempty"`
	OptionsChain  *OptionsChain  `json:"optionsChain,omitempty"`
}
