package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/polygon"
	"github.com/ternarybob/auspex/pkg/models"
)

// newTestService wires the service against a stub Polygon API.
func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := polygon.NewClient("test-key", polygon.WithBaseURL(server.URL))
	svc := NewService(client, common.GetLogger())
	svc.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) } // a Monday
	return svc
}

func snapshotBody(ticker string, lastTrade float64) string {
	return fmt.Sprintf(`{
		"status": "OK",
		"ticker": {
			"ticker": %q,
			"day": {"o": 100, "h": 110, "l": 90, "c": 105, "v": 1000, "vw": 104.5},
			"prevDay": {"o": 99, "h": 108, "l": 95, "c": 100, "v": 900},
			"min": {"o": 105, "h": 105.5, "l": 104.8, "c": 105.1, "v": 10, "vw": 105.05},
			"lastTrade": {"p": %f},
			"todaysChange": 5, "todaysChangePerc": 5, "updated": 1
		}
	}`, ticker, lastTrade)
}

func stubHandler(snapshotTicker string, lastTrade float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/marketstatus"):
			fmt.Fprint(w, `{"market": "open", "earlyHours": false, "afterHours": false, "serverTime": "2026-08-31T12:00:00-04:00"}`)
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot"):
			fmt.Fprint(w, snapshotBody(snapshotTicker, lastTrade))
		case strings.HasPrefix(r.URL.Path, "/v1/indicators"):
			fmt.Fprint(w, `{"status": "OK", "results": {"values": [{"timestamp": 1, "value": 55.5, "signal": 1.2, "histogram": 0.3}]}}`)
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options"):
			contractType := r.URL.Query().Get("contract_type")
			var results []string
			for strike := 90; strike <= 120; strike += 5 {
				results = append(results, fmt.Sprintf(
					`{"details": {"strike_price": %d, "contract_type": %q, "ticker": "O:TEST"}, "day": {"close": 1.5, "volume": 100}, "open_interest": 200}`,
					strike, contractType))
			}
			fmt.Fprintf(w, `{"status": "OK", "results": [%s]}`, strings.Join(results, ","))
		default:
			http.NotFound(w, r)
		}
	}
}

func TestFetchStockDataAssemblesBundle(t *testing.T) {
	svc := newTestService(t, stubHandler("NVDA", 105.12))

	result, err := svc.FetchStockData(context.Background(), "nvda")
	if err != nil {
		t.Fatalf("FetchStockData failed: %v", err)
	}

	var snapshot models.StockSnapshot
	if err := json.Unmarshal([]byte(result.StockSnapshotJSON), &snapshot); err != nil {
		t.Fatalf("Snapshot JSON invalid: %v", err)
	}
	if snapshot.Ticker != "NVDA" {
		t.Errorf("Expected normalized ticker NVDA, got %s", snapshot.Ticker)
	}
	if snapshot.CurrentPrice != 105.12 {
		t.Errorf("Expected current price from last trade, got %f", snapshot.CurrentPrice)
	}

	var status models.MarketStatus
	if err := json.Unmarshal([]byte(result.MarketStatusJSON), &status); err != nil {
		t.Fatalf("Market status JSON invalid: %v", err)
	}
	if status.Market != "open" {
		t.Errorf("Expected open market, got %s", status.Market)
	}

	var indicators models.IndicatorSet
	if err := json.Unmarshal([]byte(result.StandardTAsJSON), &indicators); err != nil {
		t.Fatalf("Indicators JSON invalid: %v", err)
	}
	if indicators.RSI["14"] != 55.5 {
		t.Errorf("Expected RSI(14)=55.5, got %f", indicators.RSI["14"])
	}
	if indicators.MACD == nil || indicators.MACD.Signal != 1.2 {
		t.Errorf("Expected MACD signal 1.2, got %+v", indicators.MACD)
	}
	if indicators.VWAP == nil || indicators.VWAP.Day != 104.5 {
		t.Errorf("Expected day VWAP 104.5, got %+v", indicators.VWAP)
	}

	if result.RequestLogJSON == "" || result.ResponseLogJSON == "" {
		t.Error("Expected request/response logs to be populated")
	}
}

func TestFetchStockDataStaleTicker(t *testing.T) {
	svc := newTestService(t, stubHandler("TSLA", 250))

	_, err := svc.FetchStockData(context.Background(), "NVDA")
	if err == nil {
		t.Fatal("Expected stale ticker error")
	}

	var staleErr *interfaces.StaleTickerError
	if !errors.As(err, &staleErr) {
		t.Fatalf("Expected StaleTickerError, got %T: %v", err, err)
	}
	if staleErr.Expected != "NVDA" || staleErr.Got != "TSLA" {
		t.Errorf("Unexpected stale error fields: %+v", staleErr)
	}
	if !strings.Contains(staleErr.Error(), "Stale data detected") {
		t.Errorf("Stale error message missing marker: %q", staleErr.Error())
	}
	if staleErr.RequestLogJSON == "" {
		t.Error("Expected request log captured on stale error")
	}
}

func TestFetchStockDataOptionsChainTrimmed(t *testing.T) {
	svc := newTestService(t, stubHandler("NVDA", 105.12))

	result, err := svc.FetchStockData(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("FetchStockData failed: %v", err)
	}

	var chain models.OptionsChain
	if err := json.Unmarshal([]byte(result.OptionsChainJSON), &chain); err != nil {
		t.Fatalf("Options chain JSON invalid: %v", err)
	}
	// Next Friday after Monday 2026-08-31.
	if chain.ExpirationDate != "2026-09-04" {
		t.Errorf("Expected expiration 2026-09-04, got %s", chain.ExpirationDate)
	}
	if len(chain.Contracts) == 0 {
		t.Fatal("Expected options rows")
	}
	// Rows sorted descending by strike.
	for i := 1; i < len(chain.Contracts); i++ {
		if chain.Contracts[i].Strike >= chain.Contracts[i-1].Strike {
			t.Errorf("Rows not sorted descending: %f then %f", chain.Contracts[i-1].Strike, chain.Contracts[i].Strike)
			break
		}
	}
	row := chain.Contracts[0]
	if row.Call == nil || row.Call.OptionType != "call" {
		t.Errorf("Expected call leg at strike %f", row.Strike)
	}
	if row.Put == nil || row.Put.OptionType != "put" {
		t.Errorf("Expected put leg at strike %f", row.Strike)
	}
}

func TestFetchStockDataInvalidTicker(t *testing.T) {
	svc := newTestService(t, stubHandler("NVDA", 105.12))

	if _, err := svc.FetchStockData(context.Background(), "not a ticker"); err == nil {
		t.Error("Expected error for invalid ticker")
	}
}

func TestConvertSnapshotPriceFallback(t *testing.T) {
	tests := []struct {
		name string
		in   polygon.TickerSnapshot
		want float64
	}{
		{
			"last trade preferred",
			polygon.TickerSnapshot{Ticker: "X", LastTrade: &polygon.LastTrade{Price: 10}, Day: &polygon.Agg{Close: 9}, PrevDay: &polygon.Agg{Close: 8}},
			10,
		},
		{
			"day close fallback",
			polygon.TickerSnapshot{Ticker: "X", Day: &polygon.Agg{Close: 9}, PrevDay: &polygon.Agg{Close: 8}},
			9,
		},
		{
			"prev day fallback",
			polygon.TickerSnapshot{Ticker: "X", PrevDay: &polygon.Agg{Close: 8}},
			8,
		},
		{
			"nothing available",
			polygon.TickerSnapshot{Ticker: "X"},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := convertSnapshot(&tt.in)
			if snap.CurrentPrice != tt.want {
				t.Errorf("CurrentPrice = %f, want %f", snap.CurrentPrice, tt.want)
			}
		})
	}
}

func TestTrimAroundSpot(t *testing.T) {
	strikes := make([]float64, 50)
	for i := range strikes {
		strikes[i] = float64(100 + i)
	}

	trimmed := trimAroundSpot(strikes, 125, 21)
	if len(trimmed) != 21 {
		t.Fatalf("Expected 21 strikes, got %d", len(trimmed))
	}
	if trimmed[0] != 115 || trimmed[20] != 135 {
		t.Errorf("Window not centered on spot: [%f..%f]", trimmed[0], trimmed[20])
	}

	// Spot near the low edge produces a shorter window.
	edge := trimAroundSpot(strikes, 100, 21)
	if len(edge) != 11 {
		t.Errorf("Expected 11 strikes at edge, got %d", len(edge))
	}

	short := trimAroundSpot(strikes[:5], 102, 21)
	if len(short) != 5 {
		t.Errorf("Short input should pass through, got %d", len(short))
	}
}

func TestNextFriday(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"2026-08-31", "2026-09-04"}, // Monday
		{"2026-09-04", "2026-09-11"}, // Friday rolls to next week
		{"2026-09-05", "2026-09-11"}, // Saturday
	}

	for _, tt := range tests {
		from, _ := time.Parse("2006-01-02", tt.from)
		if got := nextFriday(from).Format("2006-01-02"); got != tt.want {
			t.Errorf("nextFriday(%s) = %s, want %s", tt.from, got, tt.want)
		}
	}
}
