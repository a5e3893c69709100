// Package polygon provides a client for the Polygon.io market data API.
// This package centralizes all Polygon API interactions for the application.
package polygon

import (
	"fmt"
	"time"
)

// APIError represents an error from the Polygon API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Polygon API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Polygon rate limit exceeded, retry after %v", e.RetryAfter)
}

// IndicatorOption represents an optional parameter for indicator queries.
type IndicatorOption func(*indicatorParams)

// indicatorParams holds optional indicator query parameters.
type indicatorParams struct {
	Timespan   string // minute, hour, day
	SeriesType string // open, high, low, close
	Window     int
	Limit      int
}

// WithTimespan sets the aggregate timespan (default "day").
func WithTimespan(timespan string) IndicatorOption {
	return func(p *indicatorParams) {
		p.Timespan = timespan
	}
}

// WithSeriesType sets the price series the indicator is computed over (default "close").
func WithSeriesType(seriesType string) IndicatorOption {
	return func(p *indicatorParams) {
		p.SeriesType = seriesType
	}
}

// WithWindow sets the indicator window size.
func WithWindow(window int) IndicatorOption {
	return func(p *indicatorParams) {
		p.Window = window
	}
}

// WithLimit sets the maximum number of indicator values returned.
func WithLimit(limit int) IndicatorOption {
	return func(p *indicatorParams) {
		p.Limit = limit
	}
}

// ChainQuery holds the filter parameters for an option chain snapshot.
type ChainQuery struct {
	ContractType   string  // "call" or "put"
	ExpirationDate string  // YYYY-MM-DD
	StrikeGTE      float64 // lower strike bound
	StrikeLTE      float64 // upper strike bound
	Limit          int
}
