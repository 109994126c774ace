// Package geocode resolves coordinates to place names through Nominatim,
// remembering the last answer on disk.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Nominatim API endpoint
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the client per the OSM usage policy
	DefaultUserAgent = "PipMap/1.0"
	// DefaultTimeout for one HTTP request
	DefaultTimeout = 5 * time.Second
	// DefaultRateLimit is 1 request per second (OSM policy)
	DefaultRateLimit = rate.Limit(1.0)
	// DefaultMaxRetries for transient errors
	DefaultMaxRetries = 2
	// DefaultRetryDelay is the initial backoff delay
	DefaultRetryDelay = time.Second
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrNoResult          = errors.New("no reverse geocoding result")
)

// Client talks to the Nominatim reverse geocoding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetry sets how often transient failures are retried and the first
// backoff delay.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithClientLogger sets the logger for request retries and failures.
func WithClientLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client. An empty baseURL or userAgent selects the
// defaults.
func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reverse looks up the address at lat/lon.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: latitude %f", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: longitude %f", ErrInvalidCoordinate, lon)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	requestURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	var result ReverseResult
	if err := c.doWithRetry(ctx, requestURL, &result); err != nil {
		return nil, fmt.Errorf("reverse geocoding: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, result.Error)
	}
	return &result, nil
}

// doWithRetry GETs requestURL and decodes the JSON body into result.
// Network errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, requestURL string, result any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.maxRetries, 0))), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited (429)")
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error (%d)", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)))
		}

		if err := json.Unmarshal(body, result); err != nil {
			return backoff.Permanent(fmt.Errorf("parse json: %w", err))
		}
		return nil
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_retries", c.maxRetries).
			Dur("retry_in", wait).
			Msg("reverse geocoding failed, retrying")
	})
	if err != nil {
		c.logger.Error().Err(err).Int("attempts", attempt).Msg("reverse geocoding failed")
	}
	return err
}
