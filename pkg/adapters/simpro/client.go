// Package simpro implements ports.ScheduleProvider over a SimPro-style REST API.
package simpro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 5
	DefaultMaxAttempts       = 4
	DefaultTimeout           = 15 * time.Second
	DefaultPageSize          = 250

	dateLayout = "2006-01-02"
)

// StatusError is returned for responses that will not succeed on retry.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Code, e.Body)
}

// Config describes how to reach one provider tenant.
type Config struct {
	// BaseURL is the company root, e.g. https://acme.simprosuite.com/api/v1.0/companies/0
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	RequestsPerSecond float64
	Burst             int
	// MaxAttempts is the total number of tries per request.
	MaxAttempts uint64
	Timeout     time.Duration
}

// Observer receives the outcome of every HTTP request. A zero code means the
// request failed before a response arrived.
type Observer interface {
	ObserveProviderRequest(endpoint string, code int)
}

// Client talks to the provider API.
type Client struct {
	http     *http.Client
	base     string
	limiter  *rate.Limiter
	attempts uint64
	initial  time.Duration
	max      time.Duration
	pageSize int
	observer Observer
	logger   *slog.Logger
}

var _ ports.ScheduleProvider = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the OAuth2 client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBackoff sets the initial and maximum retry delay.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.initial = initial
		c.max = max
	}
}

// WithPageSize sets the number of records requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithObserver reports every request to obs.
func WithObserver(obs Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client authenticating with the OAuth2 client-credentials grant.
// Tokens are fetched lazily and refreshed when they expire.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: provider base URL is required", domain.ErrInvalidInput)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		attempts: cfg.MaxAttempts,
		initial:  200 * time.Millisecond,
		max:      5 * time.Second,
		pageSize: DefaultPageSize,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		c.http = cc.Client(context.Background())
		c.http.Timeout = cfg.Timeout
	}
	return c, nil
}

// get performs a rate-limited GET with retries and returns the body and headers.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, http.Header, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var (
		body   []byte
		header http.Header
	)
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.observe(endpoint, 0)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		c.observe(endpoint, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &StatusError{Code: resp.StatusCode, Body: truncate(data)}
		case resp.StatusCode >= 400:
			return backoff.Permanent(&StatusError{Code: resp.StatusCode, Body: truncate(data)})
		}
		body, header = data, resp.Header
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = c.max
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.attempts-1), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("provider request failed, retrying", "endpoint", endpoint, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return nil, nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, endpoint, err)
	}
	return body, header, nil
}

func (c *Client) observe(endpoint string, code int) {
	if c.observer != nil {
		c.observer.ObserveProviderRequest(endpoint, code)
	}
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// pages reports the total page count advertised by the response, defaulting to 1.
func pages(h http.Header) int {
	n, err := strconv.Atoi(h.Get("Result-Pages"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
