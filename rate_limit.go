package quip

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	HeaderRateLimitLimit     = "X-Ratelimit-Limit"
	HeaderRateLimitRemaining = "X-Ratelimit-Remaining"
	HeaderRateLimitReset     = "X-Ratelimit-Reset"

	// MinRateLimitPerMinute is the smallest quota for which a spacing
	// interval exists.
	MinRateLimitPerMinute = 4

	// rateLimitWindowMinutes is the span over which the per-minute quota is
	// spread by the spacing interval.
	rateLimitWindowMinutes = 15
)

// ErrInvalidRateLimit is returned when a per-minute quota is too small to
// derive a spacing interval from.
var ErrInvalidRateLimit = errors.New("rate limit per minute is too small")

// RateLimitState is the last quota observed on an API response.
type RateLimitState struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (s RateLimitState) String() string {
	return fmt.Sprintf("RateLimit{remaining=%d/%d, reset=%s}", s.Remaining, s.Limit, s.ResetAt.UTC().Format(time.RFC3339))
}

// RateLimitTracker holds the most recent quota state reported by the API.
// Updates overwrite the previous state; nothing is merged.
type RateLimitTracker struct {
	mu    sync.Mutex
	state RateLimitState
}

// NewRateLimitTracker returns a tracker that assumes a full quota of limit
// requests which resets at resetAt.
func NewRateLimitTracker(limit int, resetAt time.Time) *RateLimitTracker {
	return &RateLimitTracker{
		state: RateLimitState{
			Limit:     limit,
			Remaining: limit,
			ResetAt:   resetAt,
		},
	}
}

func (t *RateLimitTracker) Record(limit, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = RateLimitState{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// RecordHeaders overwrites the state from the rate-limit response headers.
// The reset header carries epoch seconds. Missing or malformed values count
// as zero.
func (t *RateLimitTracker) RecordHeaders(headers http.Header) RateLimitState {
	limit := headerInt(headers, HeaderRateLimitLimit)
	remaining := headerInt(headers, HeaderRateLimitRemaining)
	resetAt := time.UnixMilli(headerInt64(headers, HeaderRateLimitReset) * 1000)

	t.Record(limit, remaining, resetAt)

	return t.State()
}

func (t *RateLimitTracker) HasQuota() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.Remaining > 0
}

func (t *RateLimitTracker) State() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// UntilReset returns how long remains until the quota resets, or zero if the
// reset time has already passed.
func (t *RateLimitTracker) UntilReset(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.ResetAt.After(now) {
		return t.state.ResetAt.Sub(now)
	}

	return 0
}

// ComputeWait returns the spacing between calls that spreads a per-minute
// quota over a 15 minute window: 60 / floor(rate*15/60) seconds. With the
// default of 50 requests per minute this is 5s.
func ComputeWait(ratePerMinute int) (time.Duration, error) {
	perWindowMinute := (ratePerMinute * rateLimitWindowMinutes) / 60
	if ratePerMinute < MinRateLimitPerMinute || perWindowMinute <= 0 {
		return 0, fmt.Errorf("%w: %d (minimum is %d)", ErrInvalidRateLimit, ratePerMinute, MinRateLimitPerMinute)
	}

	ms := 60 / float64(perWindowMinute) * 1000

	return time.Duration(math.Round(ms * float64(time.Millisecond))), nil
}

func headerInt(headers http.Header, key string) int {
	return int(headerInt64(headers, key))
}

func headerInt64(headers http.Header, key string) int64 {
	if headers == nil {
		return 0
	}

	value := strings.TrimSpace(headers.Get(key))
	if value == "" {
		return 0
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}

	// Some gateways report fractional seconds.
	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}

	return 0
}
