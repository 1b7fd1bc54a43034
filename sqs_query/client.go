// Package sqsquery talks to an Osmosis SQS compatible quote API. Quotes are
// turned into swap operations for swap_and_action memos.
package sqsquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "sqs").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

var ErrNoEndpoints = errors.New("no sqs endpoints configured")

// Client is an SQS client with failover. It sends to the current endpoint
// and moves to the next healthy one once retries are exhausted.
type Client struct {
	httpClient *http.Client
	urls       []string
	current    int
	mu         sync.RWMutex
	config     FailoverConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of retries on the current endpoint
	MaxRetries int
	// RetryDelay doubles with each retry
	RetryDelay time.Duration
	// HealthCheckInterval is how often the primary is probed while on a backup
	HealthCheckInterval time.Duration
	Timeout             time.Duration
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

// NewClient creates a client for urls. The first url is the primary, the
// rest are backups in order.
func NewClient(urls []string, config FailoverConfig) (*Client, error) {
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, err := url.ParseRequestURI(u); err != nil {
			Logger.Warn().Err(err).Str("url", u).Msg("Invalid SQS URL, skipping")
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		return nil, ErrNoEndpoints
	}

	c := &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		urls:       valid,
		config:     config,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
	if len(valid) > 1 && config.HealthCheckInterval > 0 {
		go c.watchPrimary()
	} else {
		close(c.stoppedCh)
	}

	Logger.Info().Str("primary", valid[0]).Int("backups", len(valid)-1).Msg("SQS client initialized")
	return c, nil
}

// watchPrimary switches back to the primary endpoint once it is healthy.
func (c *Client) watchPrimary() {
	defer close(c.stoppedCh)
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.currentIndex() == 0 {
				continue
			}
			if c.Healthy(context.Background(), c.urls[0]) {
				c.mu.Lock()
				c.current = 0
				c.mu.Unlock()
				Logger.Info().Str("url", c.urls[0]).Msg("Restored primary endpoint")
			}
		}
	}
}

// Close stops the health checker.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.stoppedCh
	})
}

// Healthy reports whether endpoint answers its health check.
func (c *Client) Healthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/healthcheck", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		Logger.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) currentIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// CurrentURL is the endpoint requests go to.
func (c *Client) CurrentURL() string {
	return c.urls[c.currentIndex()]
}

// failover moves to the next healthy endpoint after the current one.
func (c *Client) failover(ctx context.Context) bool {
	start := c.currentIndex()
	for i := 1; i < len(c.urls); i++ {
		next := (start + i) % len(c.urls)
		if c.Healthy(ctx, c.urls[next]) {
			c.mu.Lock()
			c.current = next
			c.mu.Unlock()
			Logger.Info().Str("url", c.urls[next]).Msg("Failover to endpoint")
			return true
		}
	}
	Logger.Warn().Str("url", c.urls[start]).Msg("All endpoints unhealthy, staying on current")
	return false
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// doRequestWithFailover performs a GET with retries and, failing that, one
// attempt on the next healthy endpoint.
func (c *Client) doRequestWithFailover(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		body, err := c.get(ctx, c.CurrentURL(), path)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	if len(c.urls) > 1 && c.failover(ctx) {
		body, err := c.get(ctx, c.CurrentURL(), path)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", c.config.MaxRetries+1, lastErr)
}

// GetRoute returns the best quote for swapping tokenIn into tokenOutDenom.
// With singleRoute set the quote never splits across routes.
func (c *Client) GetRoute(ctx context.Context, tokenIn TokenRequest, tokenOutDenom string, singleRoute bool) (RouteTokenResponse, error) {
	if tokenIn.Denom == "" || tokenIn.Amount == "" || tokenOutDenom == "" {
		return RouteTokenResponse{}, errors.New("tokenIn and tokenOutDenom are required")
	}
	path := fmt.Sprintf(
		"/router/quote?tokenIn=%s&tokenOutDenom=%s&singleRoute=%t&humanDenoms=false&applyExponents=false&appendBaseFee=true",
		url.QueryEscape(tokenIn.Amount+tokenIn.Denom), url.QueryEscape(tokenOutDenom), singleRoute,
	)
	body, err := c.doRequestWithFailover(ctx, path)
	if err != nil {
		return RouteTokenResponse{}, err
	}
	var out RouteTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return RouteTokenResponse{}, fmt.Errorf("failed to parse route response: %w", err)
	}
	return out, nil
}

// GetTokenPrice fetches the price of a token in USD terms
func (c *Client) GetTokenPrice(ctx context.Context, denom string) (decimal.Decimal, error) {
	body, err := c.doRequestWithFailover(ctx, "/tokens/prices?base="+url.QueryEscape(denom))
	if err != nil {
		return decimal.Decimal{}, err
	}

	// {"<denom>": {"<quote denom>": "<price>"}}
	var prices map[string]map[string]string
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse price response: %w", err)
	}
	for _, price := range prices[denom] {
		return decimal.NewFromString(price)
	}
	return decimal.Decimal{}, errors.New("token price not found")
}
