package osm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmread/pkg/core"
	"github.com/NERVsystems/osmread/pkg/tracing"
)

const (
	// OverpassBaseURL is the public Overpass interpreter endpoint
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "osmread/0.1.0"

	serviceOverpass = "overpass"
)

// ClientOptions configures an Overpass Client
type ClientOptions struct {
	BaseURL   string
	UserAgent string

	// Rate limit in requests per second and burst size
	RPS   float64
	Burst int

	Timeout time.Duration

	// Response cache; a CacheSize of 0 disables caching and responses are
	// decoded while they stream in.
	CacheSize int
	CacheTTL  time.Duration

	Retry core.RetryOptions
}

// DefaultClientOptions returns the defaults used by the CLI
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:   OverpassBaseURL,
		UserAgent: DefaultUserAgent,
		RPS:       1,
		Burst:     1,
		Timeout:   60 * time.Second,
		CacheSize: 64,
		CacheTTL:  10 * time.Minute,
		Retry:     core.DefaultRetryOptions,
	}
}

// Client fetches element documents from an Overpass API instance
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ResponseCache
	retry      core.RetryOptions
	logger     *slog.Logger
}

// NewClient creates a new Overpass client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = OverpassBaseURL
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, core.NewValidationError(core.ErrInvalidInput, "invalid Overpass URL").WithCause(err)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	c := &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		retry:   opts.Retry,
		logger:  slog.Default().With("service", serviceOverpass),
	}

	if opts.CacheSize > 0 {
		cache, err := NewResponseCache(opts.CacheSize, opts.CacheTTL)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}

	return c, nil
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// waitForRateLimit blocks until the limiter admits one request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.limiter.Allow() {
		return nil
	}

	startWait := time.Now()

	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, serviceOverpass),
		),
	)

	err := c.limiter.Wait(ctx)

	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, serviceOverpass),
		attribute.Int64(tracing.AttrRateLimitWaitMs, time.Since(startWait).Milliseconds()),
	)

	return err
}

// monitoredDoer routes retry attempts through MonitoredDoRequest
type monitoredDoer struct {
	c         *Client
	operation string
}

func (d monitoredDoer) Do(req *http.Request) (*http.Response, error) {
	return d.c.MonitoredDoRequest(req.Context(), req, d.operation)
}

func (c *Client) post(ctx context.Context, query string) (*http.Response, error) {
	factory := func() (*http.Request, error) {
		form := url.Values{"data": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.userAgent)
		return req, nil
	}

	resp, err := core.WithRetryFactory(ctx, factory, monitoredDoer{c: c, operation: "interpreter"}, c.retry)
	if err != nil {
		var coded *core.Error
		if e, ok := err.(*core.Error); ok {
			coded = e
		} else {
			coded = core.NewError(core.ErrNetworkError, "overpass request failed").WithCause(err)
		}
		return nil, coded.WithQuery(query)
	}
	return resp, nil
}

// Fetch returns the raw response body for query, consulting the cache first
func (c *Client) Fetch(ctx context.Context, query string) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.fetch",
		trace.WithAttributes(attribute.String(tracing.AttrServiceURL, c.baseURL)))

	body, err := c.fetch(ctx, query, span)
	tracing.EndSpan(span, err)
	return body, err
}

func (c *Client) fetch(ctx context.Context, query string, span trace.Span) ([]byte, error) {
	if c.cache != nil {
		body, hit := c.cache.Get(query)
		reportCache(hit, c.cache.Size())
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeOverpass, hit, "")...)
		if hit {
			c.logger.Debug("overpass cache hit", "bytes", len(body))
			return body, nil
		}
	}

	resp, err := c.post(ctx, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.ErrNetworkError, "reading overpass response").
			WithCause(err).
			WithQuery(query)
	}

	if c.cache != nil {
		// Expired bodies would otherwise hold LRU slots until they are looked up
		c.cache.Cleanup()
		c.cache.Set(query, body)
	}

	c.logger.Debug("overpass response received", "bytes", len(body))
	return body, nil
}

// Query runs query and returns a Decoder over the elements of the response.
// With caching enabled the body is buffered first; otherwise the response is
// decoded while it streams in and the caller must Close the Decoder.
func (c *Client) Query(ctx context.Context, query string) (*Decoder, error) {
	if c.cache != nil {
		body, err := c.Fetch(ctx, query)
		if err != nil {
			return nil, err
		}
		return NewDecoder(StreamRecords(bytes.NewReader(body))), nil
	}

	ctx, span := tracing.StartSpan(ctx, "overpass.query",
		trace.WithAttributes(attribute.String(tracing.AttrServiceURL, c.baseURL)))
	resp, err := c.post(ctx, query)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	d := NewDecoder(StreamRecords(resp.Body))
	d.closers = append(d.closers, resp.Body)
	return d, nil
}

// CheckHealth checks if the Overpass API is available
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}
	req.URL.RawQuery = url.Values{"data": {"[out:json];out meta;"}}.Encode()
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.MonitoredDoRequest(ctx, req, "health")
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}

	return nil
}
