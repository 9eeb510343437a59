package quip

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeFailed
)

// execute performs one logical API call. It waits the spacing interval first
// when the observed quota is exhausted or delay mode is on, then dispatches
// and retries transport errors and retryable statuses until the retry
// registry gives up on path. Failures are logged and reported as ok == false.
func (c *Client) execute(ctx context.Context, method, path string) ([]byte, bool) {
	c.stats.Inc(OpQuery)

	var wait time.Duration
	if !c.tracker.HasQuota() || c.options.delayMode {
		wait = c.spacing
	}

	for {
		if wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				c.options.requestLogger.Errorf("Gave up on %s %s while waiting %s: %v", method, path, wait, err)
				return nil, false
			}
		}

		resp, err := c.dispatch(ctx, method, path)
		if err != nil {
			if !c.options.retryPolicy(nil, err) {
				c.options.requestLogger.Errorf("Couldn't fetch [%s%s]: %v", c.apiURL, path, err)
				return nil, false
			}

			if !c.retries.ShouldRetry(path) {
				c.options.requestLogger.Errorf("Couldn't fetch [%s%s], tried to get it %d times: %v", c.apiURL, path, c.retries.Ceiling(), err)
				return nil, false
			}

			c.options.requestLogger.Debugf("Retry after transport error for %s, waiting %s: %v", path, c.spacing, err)
			wait = c.spacing
			continue
		}

		body, retryWait, result := c.classify(resp, path)

		switch result {
		case outcomeSuccess:
			return body, true
		case outcomeRetry:
			if !c.retries.ShouldRetry(path) {
				c.options.requestLogger.Errorf("Couldn't fetch %s, tried to get it %d times", path, c.retries.Ceiling())
				return nil, false
			}
			wait = retryWait
		default:
			return nil, false
		}
	}
}

func (c *Client) dispatch(ctx context.Context, method, path string) (*resty.Response, error) {
	c.options.requestLogger.Debugf("Execute API call: %s %s", method, path)

	return c.rest.R().
		SetContext(ctx).
		Execute(method, path)
}

// classify records the rate-limit headers of resp and decides what the
// executor does next. For retryable statuses the returned wait is the spacing
// interval plus whatever remains until the quota resets.
func (c *Client) classify(resp *resty.Response, path string) ([]byte, time.Duration, outcome) {
	state := c.tracker.RecordHeaders(resp.Header())

	c.options.requestLogger.Debugf("API call response %d for %s, %s", resp.StatusCode(), path, state)

	if resp.IsSuccess() {
		return resp.Body(), 0, outcomeSuccess
	}

	if c.options.retryPolicy(resp, nil) {
		wait := c.spacing + c.tracker.UntilReset(c.now())
		c.options.requestLogger.Debugf("Retry HTTP %d: for %s, waiting %s", resp.StatusCode(), path, wait)

		return nil, wait, outcomeRetry
	}

	c.options.requestLogger.Debugf("Couldn't fetch %s%s, received %d", c.apiURL, path, resp.StatusCode())

	return nil, 0, outcomeFailed
}

// checkStatus issues a single request with no rate limiting or retries and
// reports whether it succeeded.
func (c *Client) checkStatus(ctx context.Context, path string) bool {
	resp, err := c.dispatch(ctx, http.MethodGet, path)
	if err != nil {
		c.options.requestLogger.Errorf("Couldn't fetch [%s%s]: %v", c.apiURL, path, err)
		return false
	}

	return resp.IsSuccess()
}
