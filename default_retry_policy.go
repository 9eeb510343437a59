package quip

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// DefaultRetryPolicy is the default retry condition used by [Client]. It
// reports HTTP 429 (rate limit), 500, 503 and 504 responses as retryable, as
// well as transport errors (connection refused, timeouts, DNS failures).
// Context cancellation and deadline exceeded are never retried.
//
// The policy only classifies; whether a retry actually happens is decided by
// the client's [RetryRegistry]. Supply a custom function via
// [WithRetryPolicy] to override this behaviour.
func DefaultRetryPolicy(r *resty.Response, err error) bool {
	if err != nil {
		// Don't retry on context cancellation or deadline exceeded
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}

		return true
	}

	if r == nil {
		return false
	}

	switch r.StatusCode() {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
