// Package marketdata assembles the complete market data bundle one analysis
// run needs: market status, stock snapshot, standard technical indicators,
// and a trimmed options chain. Sections fail independently; only a failed
// or stale snapshot fails the whole fetch.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/polygon"
	"github.com/ternarybob/auspex/pkg/models"
)

// strikeWindowPercent bounds the option strike window around the spot price.
const strikeWindowPercent = 0.20

// maxOptionStrikes is the number of strikes kept, centered on the strike
// closest to the spot price.
const maxOptionStrikes = 21

var rsiWindows = []int{7, 10, 14}
var movingAverageWindows = []int{5, 10, 20, 50, 200}

// Service implements interfaces.MarketDataService over the Polygon client.
type Service struct {
	client *polygon.Client
	logger arbor.ILogger
	now    func() time.Time
}

var _ interfaces.MarketDataService = (*Service)(nil)

// NewService creates a market data service backed by the given client.
func NewService(client *polygon.Client, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// FetchStockData fetches the full bundle for one ticker. The returned
// FetchResult carries each section as serialized JSON plus the request and
// response logs shown in the debug panel. A snapshot whose embedded ticker
// differs from the requested one aborts the fetch with a StaleTickerError.
func (s *Service) FetchStockData(ctx context.Context, ticker string) (*interfaces.FetchResult, error) {
	ticker = common.NormalizeTicker(ticker)
	if !common.ValidTicker(ticker) {
		return nil, fmt.Errorf("invalid ticker: %q", ticker)
	}

	requestLog := map[string]interface{}{
		"ticker":    ticker,
		"requested": s.now().UTC().Format(time.RFC3339),
		"sections":  []string{"marketStatus", "stockSnapshot", "technicalIndicators", "optionsChain"},
	}
	responseLog := map[string]interface{}{}

	s.logger.Info().Str("ticker", ticker).Msg("Fetching market data bundle")

	// Market status. A failure here degrades the bundle, not the fetch.
	var marketStatusJSON string
	status, err := s.client.GetMarketStatus(ctx)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Market status fetch failed")
		marketStatusJSON = errorPayload("market status fetch failed", err)
		responseLog["marketStatus"] = err.Error()
	} else {
		marketStatusJSON = mustJSON(&models.MarketStatus{
			Market:     status.Market,
			EarlyHours: status.EarlyHours,
			LateHours:  status.AfterHours,
			ServerTime: status.ServerTime,
			Exchanges:  status.Exchanges,
			Currencies: status.Currencies,
		})
		responseLog["marketStatus"] = status.Market
	}

	// Snapshot. Everything downstream depends on the current price, so a
	// failure here fails the fetch.
	snapResp, err := s.client.GetSnapshot(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch for %s failed: %w", ticker, err)
	}
	if snapResp.Ticker == nil {
		return nil, fmt.Errorf("snapshot response for %s carried no ticker data", ticker)
	}

	got := common.NormalizeTicker(snapResp.Ticker.Ticker)
	if got != ticker {
		responseLog["stockSnapshot"] = fmt.Sprintf("ticker mismatch: requested %s, got %s", ticker, got)
		return nil, &interfaces.StaleTickerError{
			Expected:        ticker,
			Got:             got,
			RequestLogJSON:  mustJSON(requestLog),
			ResponseLogJSON: mustJSON(responseLog),
		}
	}

	snapshot := convertSnapshot(snapResp.Ticker)
	responseLog["stockSnapshot"] = fmt.Sprintf("currentPrice=%.2f", snapshot.CurrentPrice)

	// Standard technical indicators. Per-indicator failures are recorded in
	// the set's error field so the UI can show partial results.
	indicators := s.fetchIndicators(ctx, ticker, snapshot)
	if indicators.Error != "" {
		responseLog["technicalIndicators"] = indicators.Error
	} else {
		responseLog["technicalIndicators"] = "ok"
	}

	// Options chain around the spot price.
	var optionsJSON string
	if snapshot.CurrentPrice > 0 {
		chain, err := s.fetchOptionsChain(ctx, ticker, snapshot.CurrentPrice)
		if err != nil {
			s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Options chain fetch failed")
			optionsJSON = errorPayload("options chain fetch failed", err)
			responseLog["optionsChain"] = err.Error()
		} else {
			optionsJSON = mustJSON(chain)
			responseLog["optionsChain"] = fmt.Sprintf("%d strikes", len(chain.Contracts))
		}
	} else {
		optionsJSON = errorPayload("options chain skipped", fmt.Errorf("no current price available for %s", ticker))
		responseLog["optionsChain"] = "skipped: no current price"
	}

	s.logger.Info().Str("ticker", ticker).Msg("Market data bundle assembled")

	return &interfaces.FetchResult{
		MarketStatusJSON:  marketStatusJSON,
		StockSnapshotJSON: mustJSON(snapshot),
		StandardTAsJSON:   mustJSON(indicators),
		OptionsChainJSON:  optionsJSON,
		RequestLogJSON:    mustJSON(requestLog),
		ResponseLogJSON:   mustJSON(responseLog),
	}, nil
}

// convertSnapshot maps the provider snapshot onto the domain model and
// resolves the current price: last trade, then day close, then previous
// day close.
func convertSnapshot(t *polygon.TickerSnapshot) *models.StockSnapshot {
	snap := &models.StockSnapshot{
		Ticker:           common.NormalizeTicker(t.Ticker),
		Day:              convertAgg(t.Day),
		PrevDay:          convertAgg(t.PrevDay),
		Min:              convertAgg(t.Min),
		TodaysChange:     t.TodaysChange,
		TodaysChangePerc: t.TodaysChangePerc,
		Updated:          t.Updated,
	}

	switch {
	case t.LastTrade != nil && t.LastTrade.Price > 0:
		snap.CurrentPrice = t.LastTrade.Price
	case t.Day != nil && t.Day.Close > 0:
		snap.CurrentPrice = t.Day.Close
	case t.PrevDay != nil && t.PrevDay.Close > 0:
		snap.CurrentPrice = t.PrevDay.Close
	}

	return snap
}

func convertAgg(a *polygon.Agg) *models.PriceBar {
	if a == nil {
		return nil
	}
	return &models.PriceBar{
		Open:      a.Open,
		High:      a.High,
		Low:       a.Low,
		Close:     a.Close,
		Volume:    a.Volume,
		VWAP:      a.VWAP,
		Timestamp: a.Timestamp,
		Trades:    a.Trades,
	}
}

// fetchIndicators pulls RSI, MACD, EMA and SMA series and derives VWAP from
// the snapshot aggregates. Individual failures append to the set's error
// field instead of aborting.
func (s *Service) fetchIndicators(ctx context.Context, ticker string, snapshot *models.StockSnapshot) *models.IndicatorSet {
	set := &models.IndicatorSet{
		RSI: map[string]float64{},
		EMA: map[string]float64{},
		SMA: map[string]float64{},
	}
	var errs []string

	for _, window := range rsiWindows {
		resp, err := s.client.GetIndicator(ctx, "rsi", ticker, polygon.WithWindow(window))
		if err != nil {
			errs = append(errs, fmt.Sprintf("RSI(%d): %v", window, err))
			continue
		}
		if v, ok := latestValue(resp); ok {
			set.RSI[fmt.Sprintf("%d", window)] = round(v, 2)
		}
	}

	macdResp, err := s.client.GetIndicator(ctx, "macd", ticker)
	if err != nil {
		errs = append(errs, fmt.Sprintf("MACD: %v", err))
	} else if macdResp.Results != nil && len(macdResp.Results.Values) > 0 {
		v := macdResp.Results.Values[0]
		set.MACD = &models.MACDValue{
			Value:     round(v.Value, 4),
			Signal:    round(v.Signal, 4),
			Histogram: round(v.Histogram, 4),
		}
	}

	for _, window := range movingAverageWindows {
		emaResp, err := s.client.GetIndicator(ctx, "ema", ticker, polygon.WithWindow(window))
		if err != nil {
			errs = append(errs, fmt.Sprintf("EMA(%d): %v", window, err))
		} else if v, ok := latestValue(emaResp); ok {
			set.EMA[fmt.Sprintf("%d", window)] = round(v, 2)
		}

		smaResp, err := s.client.GetIndicator(ctx, "sma", ticker, polygon.WithWindow(window))
		if err != nil {
			errs = append(errs, fmt.Sprintf("SMA(%d): %v", window, err))
		} else if v, ok := latestValue(smaResp); ok {
			set.SMA[fmt.Sprintf("%d", window)] = round(v, 2)
		}
	}

	// VWAP comes from the snapshot aggregates, not a separate endpoint.
	vwap := &models.VWAPValue{}
	if snapshot.Day != nil {
		vwap.Day = snapshot.Day.VWAP
	}
	if snapshot.Min != nil {
		vwap.Minute = snapshot.Min.VWAP
	}
	if vwap.Day > 0 || vwap.Minute > 0 {
		set.VWAP = vwap
	}

	if len(errs) > 0 {
		set.Error = strings.Join(errs, "; ")
	}
	return set
}

// fetchOptionsChain fetches calls and puts for the next Friday expiration
// within a strike window around the spot price, merges them by strike, and
// trims the result to a fixed number of strikes centered on the one closest
// to spot, sorted descending.
func (s *Service) fetchOptionsChain(ctx context.Context, ticker string, currentPrice float64) (*models.OptionsChain, error) {
	expiration := nextFriday(s.now()).Format("2006-01-02")
	query := polygon.ChainQuery{
		ExpirationDate: expiration,
		StrikeGTE:      currentPrice * (1 - strikeWindowPercent),
		StrikeLTE:      currentPrice * (1 + strikeWindowPercent),
		Limit:          250,
	}

	callQuery := query
	callQuery.ContractType = "call"
	calls, err := s.client.GetOptionChain(ctx, ticker, callQuery)
	if err != nil {
		return nil, fmt.Errorf("call chain fetch failed: %w", err)
	}

	putQuery := query
	putQuery.ContractType = "put"
	puts, err := s.client.GetOptionChain(ctx, ticker, putQuery)
	if err != nil {
		return nil, fmt.Errorf("put chain fetch failed: %w", err)
	}

	callsByStrike := map[float64]*polygon.OptionContractSnapshot{}
	putsByStrike := map[float64]*polygon.OptionContractSnapshot{}
	strikeSet := map[float64]bool{}

	for i := range calls.Results {
		c := &calls.Results[i]
		if c.Details == nil {
			continue
		}
		strike := round(c.Details.StrikePrice, 2)
		callsByStrike[strike] = c
		strikeSet[strike] = true
	}
	for i := range puts.Results {
		p := &puts.Results[i]
		if p.Details == nil {
			continue
		}
		strike := round(p.Details.StrikePrice, 2)
		putsByStrike[strike] = p
		strikeSet[strike] = true
	}

	strikes := make([]float64, 0, len(strikeSet))
	for strike := range strikeSet {
		strikes = append(strikes, strike)
	}
	sort.Float64s(strikes)

	strikes = trimAroundSpot(strikes, currentPrice, maxOptionStrikes)

	// Rows are presented highest strike first.
	sort.Sort(sort.Reverse(sort.Float64Slice(strikes)))

	rows := make([]models.OptionsRow, 0, len(strikes))
	for _, strike := range strikes {
		rows = append(rows, models.OptionsRow{
			Strike: strike,
			Call:   convertContract(callsByStrike[strike], "call"),
			Put:    convertContract(putsByStrike[strike], "put"),
		})
	}

	return &models.OptionsChain{
		Ticker:          ticker,
		ExpirationDate:  expiration,
		Contracts:       rows,
		UnderlyingPrice: currentPrice,
	}, nil
}

func convertContract(c *polygon.OptionContractSnapshot, optionType string) *models.OptionContract {
	if c == nil || c.Details == nil {
		return nil
	}

	out := &models.OptionContract{
		StrikePrice:    round(c.Details.StrikePrice, 2),
		OptionType:     optionType,
		IV:             round(c.ImpliedVolatility, 4),
		OpenInterest:   round(c.OpenInterest, 0),
		BreakEvenPrice: round(c.BreakEvenPrice, 2),
	}
	if c.Day != nil {
		out.LastPrice = round(c.Day.Close, 2)
		out.Change = round(c.Day.Change, 2)
		out.PercentChange = round(c.Day.ChangePercent, 2)
		out.Volume = round(c.Day.Volume, 0)
	}
	if c.Greeks != nil {
		out.Delta = round(c.Greeks.Delta, 4)
		out.Gamma = round(c.Greeks.Gamma, 4)
		out.Theta = round(c.Greeks.Theta, 4)
		out.Vega = round(c.Greeks.Vega, 4)
	}
	if c.LastQuote != nil {
		out.Bid = round(c.LastQuote.Bid, 2)
		out.Ask = round(c.LastQuote.Ask, 2)
	}
	return out
}

// trimAroundSpot keeps at most max strikes centered on the strike closest
// to the spot price. Input must be sorted ascending.
func trimAroundSpot(strikes []float64, spot float64, max int) []float64 {
	if len(strikes) <= max {
		return strikes
	}

	closest := 0
	for i, strike := range strikes {
		if math.Abs(strike-spot) < math.Abs(strikes[closest]-spot) {
			closest = i
		}
	}

	// Window does not re-extend at the edges, so a spot near the end of
	// the strike range yields fewer rows.
	half := max / 2
	start := closest - half
	if start < 0 {
		start = 0
	}
	end := closest + half + 1
	if end > len(strikes) {
		end = len(strikes)
	}
	return strikes[start:end]
}

// nextFriday returns the first Friday strictly after the given day.
func nextFriday(from time.Time) time.Time {
	days := (int(time.Friday) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days)
}

func latestValue(resp *polygon.IndicatorResponse) (float64, bool) {
	if resp == nil || resp.Results == nil || len(resp.Results.Values) == 0 {
		return 0, false
	}
	return resp.Results.Values[0].Value, true
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":"serialization failed","details":%q}`, err.Error())
	}
	return string(data)
}

func errorPayload(message string, err error) string {
	return mustJSON(map[string]string{
		"status":  "error",
		"message": message,
		"details": err.Error(),
	})
}
