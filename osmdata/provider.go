package osmdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/metrics"
)

const (
	// DefaultBaseURL is the public OSM editing API
	DefaultBaseURL = "https://api.openstreetmap.org"
	// DefaultUserAgent identifies the client per OSM API usage policy
	DefaultUserAgent = "PipMap/1.0"
	// DefaultTimeout bounds a single HTTP attempt
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts bounds the retry loop
	DefaultMaxAttempts = 5
	// DefaultInitialBackoff is the first retry delay
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultMaxBackoff caps a single retry delay
	DefaultMaxBackoff = 8 * time.Second
	// DefaultRateLimit is requests per second against the API
	DefaultRateLimit = rate.Limit(2)
	// DefaultMaxPayload caps a response body in bytes
	DefaultMaxPayload = 64 << 20
)

// Provider fetches map payloads from the OSM API.
type Provider struct {
	client         *http.Client
	baseURL        string
	userAgent      string
	cache          *RawCache
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxPayload     int64
	logger         zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithBaseURL points the provider at another API host.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Provider) {
		p.userAgent = ua
	}
}

// WithRetry sets the attempt limit and the backoff interval bounds.
func WithRetry(maxAttempts int, initial, ceiling time.Duration) Option {
	return func(p *Provider) {
		p.maxAttempts = maxAttempts
		p.initialBackoff = initial
		p.maxBackoff = ceiling
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(p *Provider) {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxPayload sets the largest accepted response body. A larger
// response fails the fetch without a retry.
func WithMaxPayload(n int64) Option {
	return func(p *Provider) {
		p.maxPayload = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a provider that persists successful payloads to cache.
func NewProvider(cache *RawCache, opts ...Option) *Provider {
	p := &Provider{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL:        DefaultBaseURL,
		userAgent:      DefaultUserAgent,
		cache:          cache,
		limiter:        rate.NewLimiter(DefaultRateLimit, 1),
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		maxPayload:     DefaultMaxPayload,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	if p.maxPayload <= 0 {
		p.maxPayload = DefaultMaxPayload
	}
	return p
}

// MapURL returns the bbox query for b.
func (p *Provider) MapURL(b geo.Bounds) string {
	return fmt.Sprintf("%s/api/0.6/map?bbox=%s", p.baseURL, b)
}

// Fetch downloads and normalizes the map data for b. It blocks, so it must
// not run on the UI goroutine.
//
// Transport failures, 429/5xx responses and payloads that are not OSM
// documents are retried with exponential backoff up to the attempt limit;
// other HTTP errors and oversized responses end the loop at once. Either way the returned error
// wraps ErrFetchFailed.
func (p *Provider) Fetch(ctx context.Context, b geo.Bounds) (*Data, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	url := p.MapURL(b)
	start := time.Now()
	defer func() {
		metrics.OSMFetchDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		data    *Data
		attempt int
	)
	operation := func() error {
		attempt++
		payload, err := p.get(ctx, url)
		if err != nil {
			return err
		}

		parsed, err := Normalize(payload, b, p.logger)
		if err != nil {
			metrics.OSMFetchAttemptsTotal.WithLabelValues("transient").Inc()
			return err
		}
		metrics.OSMFetchAttemptsTotal.WithLabelValues("success").Inc()

		if p.cache != nil {
			if err := p.cache.Write(payload); err != nil {
				p.logger.Warn().Err(err).Str("path", p.cache.Path()).Msg("failed to write map cache")
			}
		}
		data = parsed
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.initialBackoff
	policy.MaxInterval = p.maxBackoff
	policy.MaxElapsedTime = 0

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, retry, func(err error, wait time.Duration) {
		p.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.maxAttempts).
			Dur("retry_in", wait).
			Msg("map fetch failed, retrying")
	})
	if err != nil {
		p.logger.Error().Err(err).Str("bbox", b.String()).Int("attempts", attempt).Msg("map fetch failed")
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, attempt, err)
	}

	p.logger.Info().
		Str("bbox", b.String()).
		Int("ways", len(data.Ways)).
		Int("pois", len(data.POIs)).
		Dur("latency", time.Since(start)).
		Msg("map fetched")
	return data, nil
}

// LoadCached normalizes the last persisted payload. b only sets the
// transform origin and extent: the whole payload is returned even when it
// covers a different area than b.
func (p *Provider) LoadCached(_ context.Context, b geo.Bounds) (*Data, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if p.cache == nil {
		return nil, fmt.Errorf("%w: no cache configured", ErrCacheMiss)
	}

	payload, err := p.cache.Read()
	if err != nil {
		return nil, err
	}

	data, err := Normalize(payload, b, p.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}

	if data.Declared != nil && !data.Declared.Covers(b) {
		p.logger.Warn().
			Str("requested", b.String()).
			Str("cached", data.Declared.String()).
			Msg("cached map does not cover requested area")
	}
	return data, nil
}

func (p *Provider) get(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	p.logger.Debug().Str("url", url).Msg("requesting map data")
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.OSMFetchAttemptsTotal.WithLabelValues("transient").Inc()
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxPayload+1))
	if err != nil {
		metrics.OSMFetchAttemptsTotal.WithLabelValues("transient").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}
	// a cut-off document would still decode as a truncated map
	if int64(len(body)) > p.maxPayload {
		metrics.OSMFetchAttemptsTotal.WithLabelValues("permanent").Inc()
		return nil, backoff.Permanent(fmt.Errorf("%w: response exceeds %d bytes", ErrPayloadTooLarge, p.maxPayload))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.OSMFetchAttemptsTotal.WithLabelValues("transient").Inc()
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	default:
		metrics.OSMFetchAttemptsTotal.WithLabelValues("permanent").Inc()
		return nil, backoff.Permanent(errors.New(statusMessage(resp.StatusCode, body)))
	}
}

func statusMessage(code int, body []byte) string {
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return fmt.Sprintf("unexpected status code %d: %s", code, body)
}
