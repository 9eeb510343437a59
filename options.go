package quip

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultAPIURL is the public Quip automation API endpoint.
	DefaultAPIURL = "https://platform.quip.com:443/1"

	// DefaultRateLimitPerMinute is the platform's basic per-user quota.
	DefaultRateLimitPerMinute = 50

	// DefaultRetryLimit is the number of retries allowed per request target.
	DefaultRetryLimit = 10
)

type Option func(*Options)

type Options struct {
	apiURL             string
	rateLimitPerMinute int
	delayMode          bool
	retryLimit         int
	pollInterval       time.Duration
	maxPolls           int
	timeout            time.Duration
	requestLogger      RequestLogger
	retryPolicy        func(*resty.Response, error) bool
	requestHeaders     map[string]string
}

func newClientOptions() *Options {
	return &Options{
		apiURL:             DefaultAPIURL,
		rateLimitPerMinute: DefaultRateLimitPerMinute,
		retryLimit:         DefaultRetryLimit,
		pollInterval:       5 * time.Second,
		maxPolls:           120,
		timeout:            60 * time.Second,
		requestLogger:      &NoopLogger{},
		retryPolicy:        DefaultRetryPolicy,
		requestHeaders: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// WithAPIURL overrides the API base URL, e.g. for company-hosted Quip
// instances. A trailing slash is removed.
func WithAPIURL(apiURL string) Option {
	return func(o *Options) {
		apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
		if apiURL != "" {
			o.apiURL = apiURL
		}
	}
}

// WithRateLimitPerMinute sets the per-minute quota used to derive the spacing
// between delayed calls. Non-positive values are ignored; positive values too
// small to produce a spacing interval are rejected by [New].
func WithRateLimitPerMinute(limit int) Option {
	return func(o *Options) {
		if limit > 0 {
			o.rateLimitPerMinute = limit
		}
	}
}

// WithDelayMode makes every call wait the spacing interval before dispatch.
func WithDelayMode(enabled bool) Option {
	return func(o *Options) {
		o.delayMode = enabled
	}
}

func WithRetryLimit(limit int) Option {
	return func(o *Options) {
		if limit >= 0 {
			o.retryLimit = limit
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(o *Options) {
		if interval >= 0 {
			o.pollInterval = interval
		}
	}
}

// WithMaxPolls caps the number of status polls for one export job.
func WithMaxPolls(maxPolls int) Option {
	return func(o *Options) {
		if maxPolls > 0 {
			o.maxPolls = maxPolls
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= time.Second {
			o.timeout = timeout
		}
	}
}

func WithRequestLogger(logger RequestLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.requestLogger = logger
		}
	}
}

func WithRetryPolicy(policy func(*resty.Response, error) bool) Option {
	return func(o *Options) {
		if policy != nil {
			o.retryPolicy = policy
		}
	}
}

func WithRequestHeader(header, value string) Option {
	return func(o *Options) {
		header = strings.TrimSpace(header)

		if header == "" || strings.EqualFold(header, "Content-Type") || strings.EqualFold(header, "Authorization") {
			return
		}

		o.requestHeaders[header] = value
	}
}

// Validate reports the first option that cannot be used to build a client.
func (o *Options) Validate() error {
	u, err := url.ParseRequestURI(o.apiURL)
	if err != nil {
		return fmt.Errorf("apiURL is invalid: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("apiURL scheme must be http or https, got %q", u.Scheme)
	}

	if _, err := ComputeWait(o.rateLimitPerMinute); err != nil {
		return err
	}

	if o.retryLimit < 0 {
		return errors.New("retryLimit must be non-negative")
	}

	if o.retryLimit > 100 {
		return errors.New("retryLimit must not exceed 100")
	}

	if o.pollInterval < 0 {
		return errors.New("pollInterval must be non-negative")
	}

	if o.maxPolls < 1 {
		return errors.New("maxPolls must be at least 1")
	}

	if o.timeout < time.Second {
		return errors.New("timeout must be at least 1s")
	}

	if o.requestLogger == nil {
		return errors.New("requestLogger must not be nil")
	}

	if o.retryPolicy == nil {
		return errors.New("retryPolicy must not be nil")
	}

	return nil
}
