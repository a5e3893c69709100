package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Polygon API.
	DefaultBaseURL = "https://api.polygon.io"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client is a Polygon.io API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithRateInterval sets the rate limit as a minimum interval between requests.
func WithRateInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// NewClient creates a new Polygon API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)

	// Build URL
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Log request
	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Polygon API request")
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Check status
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: time.Second}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetMarketStatus retrieves the current market session status.
func (c *Client) GetMarketStatus(ctx context.Context) (*MarketStatusResponse, error) {
	var result MarketStatusResponse
	if err := c.get(ctx, "/v1/marketstatus/now", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSnapshot retrieves the full trading snapshot for a ticker.
func (c *Client) GetSnapshot(ctx context.Context, ticker string) (*SnapshotResponse, error) {
	var result SnapshotResponse
	path := "/v2/snapshot/locale/us/markets/stocks/tickers/" + url.PathEscape(ticker)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetIndicator retrieves a technical indicator series for a ticker.
// Indicator is one of "rsi", "macd", "ema", "sma".
func (c *Client) GetIndicator(ctx context.Context, indicator, ticker string, opts ...IndicatorOption) (*IndicatorResponse, error) {
	params := &indicatorParams{
		Timespan:   "day",
		SeriesType: "close",
		Limit:      1,
	}
	for _, opt := range opts {
		opt(params)
	}

	queryParams := url.Values{}
	queryParams.Set("timespan", params.Timespan)
	queryParams.Set("series_type", params.SeriesType)
	if params.Window > 0 {
		queryParams.Set("window", strconv.Itoa(params.Window))
	}
	if params.Limit > 0 {
		queryParams.Set("limit", strconv.Itoa(params.Limit))
	}

	var result IndicatorResponse
	path := fmt.Sprintf("/v1/indicators/%s/%s", indicator, url.PathEscape(ticker))
	if err := c.get(ctx, path, queryParams, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOptionChain retrieves an option chain snapshot for an underlying,
// filtered by contract type, expiration and strike bounds.
func (c *Client) GetOptionChain(ctx context.Context, underlying string, query ChainQuery) (*ChainSnapshotResponse, error) {
	queryParams := url.Values{}
	if query.ContractType != "" {
		queryParams.Set("contract_type", query.ContractType)
	}
	if query.ExpirationDate != "" {
		queryParams.Set("expiration_date", query.ExpirationDate)
	}
	if query.StrikeGTE > 0 {
		queryParams.Set("strike_price.gte", strconv.FormatFloat(query.StrikeGTE, 'f', 0, 64))
	}
	if query.StrikeLTE > 0 {
		queryParams.Set("strike_price.lte", strconv.FormatFloat(query.StrikeLTE, 'f', 0, 64))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 250
	}
	queryParams.Set("limit", strconv.Itoa(limit))

	var result ChainSnapshotResponse
	path := "/v3/snapshot/options/" + url.PathEscape(underlying)
	if err := c.get(ctx, path, queryParams, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
