package polygon

// MarketStatusResponse is the /v1/marketstatus/now payload.
type MarketStatusResponse struct {
	Market     string            `json:"market"`
	EarlyHours bool              `json:"earlyHours"`
	AfterHours bool              `json:"afterHours"`
	ServerTime string            `json:"serverTime"`
	Exchanges  map[string]string `json:"exchanges"`
	Currencies map[string]string `json:"currencies"`
}

// Agg is one OHLCV aggregate within a snapshot.
type Agg struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	VWAP      float64 `json:"vw"`
	Timestamp int64   `json:"t"`
	Trades    int64   `json:"n"`
}

// LastTrade is the most recent trade within a snapshot.
type LastTrade struct {
	Price     float64 `json:"p"`
	Size      float64 `json:"s"`
	Timestamp int64   `json:"t"`
}

// TickerSnapshot is the per-ticker body of a snapshot response.
type TickerSnapshot struct {
	Ticker           string     `json:"ticker"`
	Day              *Agg       `json:"day"`
	PrevDay          *Agg       `json:"prevDay"`
	Min              *Agg       `json:"min"`
	LastTrade        *LastTrade `json:"lastTrade"`
	TodaysChange     float64    `json:"todaysChange"`
	TodaysChangePerc float64    `json:"todaysChangePerc"`
	Updated          int64      `json:"updated"`
}

// SnapshotResponse is the /v2/snapshot/.../tickers/{ticker} payload.
type SnapshotResponse struct {
	Status string          `json:"status"`
	Ticker *TickerSnapshot `json:"ticker"`
}

// IndicatorValue is one point in an indicator series.
type IndicatorValue struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
	// MACD only
	Signal    float64 `json:"signal,omitempty"`
	Histogram float64 `json:"histogram,omitempty"`
}

// IndicatorResults wraps the values of an indicator response.
type IndicatorResults struct {
	Values []IndicatorValue `json:"values"`
}

// IndicatorResponse is the /v1/indicators/{indicator}/{ticker} payload.
type IndicatorResponse struct {
	Status  string            `json:"status"`
	Results *IndicatorResults `json:"results"`
}

// OptionDetails describes the contract terms of one option.
type OptionDetails struct {
	StrikePrice     float64 `json:"strike_price"`
	ContractType    string  `json:"contract_type"`
	ExpirationDate  string  `json:"expiration_date"`
	PrimaryExchange string  `json:"primary_exchange,omitempty"`
	Ticker          string  `json:"ticker"`
}

// OptionDay is the daily aggregate for one option contract.
type OptionDay struct {
	Close         float64 `json:"close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
}

// OptionGreeks are the risk sensitivities for one option contract.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// OptionQuote is the most recent quote for one option contract.
type OptionQuote struct {
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	BidSize float64 `json:"bid_size"`
	AskSize float64 `json:"ask_size"`
}

// OptionContractSnapshot is one contract within an option chain snapshot.
type OptionContractSnapshot struct {
	Details           *OptionDetails `json:"details"`
	Day               *OptionDay     `json:"day"`
	Greeks            *OptionGreeks  `json:"greeks"`
	LastQuote         *OptionQuote   `json:"last_quote"`
	ImpliedVolatility float64        `json:"implied_volatility"`
	OpenInterest      float64        `json:"open_interest"`
	BreakEvenPrice    float64        `json:"break_even_price"`
}

// ChainSnapshotResponse is the /v3/snapshot/options/{underlying} payload.
type ChainSnapshotResponse struct {
	Status  string                   `json:"status"`
	Results []OptionContractSnapshot `json:"results"`
	NextURL string                   `json:"next_url,omitempty"`
}
