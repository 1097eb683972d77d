package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portfolio-tracker/internal/config"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://www.alphavantage.co/query"
	defaultPricePath = `$["Global Quote"]["05. price"]`
	// Source tags prices recorded from this client.
	Source = "alphavantage"
)

var (
	// ErrMissingCredentials means no request was sent because the API key
	// or the symbol was empty.
	ErrMissingCredentials = errors.New("missing API key or ticker")
	// ErrInvalidResponse means the response did not carry a usable price.
	ErrInvalidResponse = errors.New("invalid API response")
)

// PriceFetcher returns the latest traded price of a symbol.
type PriceFetcher interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Client is a client for a GLOBAL_QUOTE style quote API.
// It implements the PriceFetcher interface.
type Client struct {
	client      *resty.Client
	baseURL     string
	apiKey      string
	pricePath   string
	maxAttempts int
	logger      *zap.Logger
	limiter     *rate.Limiter
}

// ensure Client implements the interface
var _ PriceFetcher = (*Client)(nil)

// NewClient creates a new quote API client.
func NewClient(cfg *config.Quote, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pricePath := cfg.PricePath
	if pricePath == "" {
		pricePath = defaultPricePath
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	}

	// rate.Limit is requests per second.
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		client:      client,
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.ApiKey),
		pricePath:   pricePath,
		maxAttempts: attempts,
		logger:      logger.Named("quote"),
		limiter:     rate.NewLimiter(limit, burst),
	}
}

// LatestPrice fetches the latest price for symbol, rounded to 2 decimal places.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if c.apiKey == "" || symbol == "" {
		return decimal.Zero, ErrMissingCredentials
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
			"apikey":   c.apiKey,
		})

	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL, req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	price, err := c.extractPrice(resp.Body())
	if err != nil {
		c.logger.Warn("Invalid API response", zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w for %s: %v", ErrInvalidResponse, symbol, err)
	}

	c.logger.Info("Price updated", zap.String("symbol", symbol), zap.Stringer("price", price))
	return price, nil
}

func (c *Client) extractPrice(body []byte) (decimal.Decimal, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return decimal.Zero, fmt.Errorf("response is not JSON: %w", err)
	}
	val, err := jsonpath.Get(c.pricePath, doc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price not found at %s: %w", c.pricePath, err)
	}
	// jsonpath may wrap a single match in a list
	if list, ok := val.([]any); ok && len(list) > 0 {
		val = list[0]
	}

	var price decimal.Decimal
	switch v := val.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, fmt.Errorf("price at %s is empty", c.pricePath)
		}
		price, err = decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %q is not a number", v)
		}
	case float64:
		price = decimal.NewFromFloat(v)
	default:
		return decimal.Zero, fmt.Errorf("price at %s has unexpected type %T", c.pricePath, val)
	}
	return price.Round(2), nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// With maxAttempts at 1 a failure is returned as is.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxAttempts; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s", resp.Status())
		} else {
			shouldRetry = true
		}

		if !shouldRetry || i == c.maxAttempts-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed: %w", err)
}
