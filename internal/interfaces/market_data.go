package interfaces

import (
	"context"
	"fmt"
)

// FetchResult carries the serialized payloads a single market-data fetch
// produces: four data documents plus the verbatim request/response log
// pair exposed to the debug panel.
type FetchResult struct {
	MarketStatusJSON  string
	StockSnapshotJSON string
	StandardTAsJSON   string
	OptionsChainJSON  string
	RequestLogJSON    string
	ResponseLogJSON   string
}

// MarketDataService fetches the complete data bundle for one ticker.
// Implementations must return a StaleTickerError when the provider's
// snapshot carries a different symbol than the one requested.
type MarketDataService interface {
	FetchStockData(ctx context.Context, ticker string) (*FetchResult, error)
}

// StaleTickerError reports a ticker mismatch between the requested symbol
// and the snapshot the provider returned. Rendered rather than swallowed:
// silently showing wrong-ticker data is worse than an explicit error.
type StaleTickerError struct {
	Expected string
	Got      string

	// Debug log payloads captured before the fetch was rejected.
	RequestLogJSON  string
	ResponseLogJSON string
}

func (e *StaleTickerError) Error() string {
	return fmt.Sprintf("Stale data detected from data source. Expected %s, received snapshot for %s.", e.Expected, e.Got)
}
