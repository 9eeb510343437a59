package quip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrTokenRequired = errors.New("access token must be set")
	ErrTokenRejected = errors.New("access token was rejected")
)

// Client is a rate-limit aware client for the Quip automation API. Requests
// are dispatched one at a time by the calling goroutine; the client itself
// starts no goroutines.
type Client struct {
	rest    *resty.Client
	apiURL  string
	options *Options
	spacing time.Duration
	tracker *RateLimitTracker
	retries *RetryRegistry
	stats   *CallStats
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a client for the given access token. Invalid option values are
// ignored and the default is kept; a configuration that still cannot work
// (empty token, unusable URL, a rate limit too small to space calls) is
// reported as an error.
func New(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}

	options := newClientOptions()
	for _, o := range opts {
		o(options)
	}

	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	spacing, err := ComputeWait(options.rateLimitPerMinute)
	if err != nil {
		return nil, err
	}

	rest := resty.New().
		SetBaseURL(options.apiURL).
		SetAuthScheme("Bearer").
		SetAuthToken(token).
		SetHeaders(options.requestHeaders).
		SetTimeout(options.timeout).
		SetLogger(options.requestLogger).
		SetRetryCount(0)

	now := time.Now

	return &Client{
		rest:    rest,
		apiURL:  options.apiURL,
		options: options,
		spacing: spacing,
		tracker: NewRateLimitTracker(options.rateLimitPerMinute, now()),
		retries: NewRetryRegistry(options.retryLimit),
		stats:   NewCallStats(),
		now:     now,
		sleep:   sleepContext,
	}, nil
}

// Connect verifies the access token against the current-user endpoint.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return errors.New("quip client is nil")
	}

	if !c.CheckUser(ctx) {
		return fmt.Errorf("failed to verify access token against %s: %w", c.apiURL, ErrTokenRejected)
	}

	return nil
}

// Stats returns a snapshot of the per-operation call counters.
func (c *Client) Stats() map[string]int {
	return c.stats.Snapshot()
}

// RateLimit returns the quota state observed on the most recent API response.
func (c *Client) RateLimit() RateLimitState {
	return c.tracker.State()
}

// Spacing is the wait applied before delayed calls and between retries.
func (c *Client) Spacing() time.Duration {
	return c.spacing
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
