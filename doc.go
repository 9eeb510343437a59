// Package quip provides a rate-limit aware HTTP client for the Quip
// automation API, used to fetch and export threads, folders, users and
// attachments.
//
// The client wraps [github.com/go-resty/resty/v2] with per-target retries,
// rate-limit tracking from response headers, asynchronous PDF export polling
// and pluggable logging.
//
// # Basic Usage
//
//	c, err := quip.New(token,
//	    quip.WithRateLimitPerMinute(50),
//	    quip.WithRequestLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	thread, ok := c.GetThread(ctx, "AVN9AAeqq5w")
//	if !ok {
//	    // the reason has already been logged
//	}
//
// # Failures
//
// API methods never return errors for remote failures. Transport errors,
// exhausted retries and client errors are logged through the [RequestLogger]
// and reported as a false second return value. Configuration problems are
// reported as errors by [New].
//
// # Rate Limiting
//
// Every API response updates the tracked quota from the X-Ratelimit-Limit,
// X-Ratelimit-Remaining and X-Ratelimit-Reset headers. When the remaining
// quota reaches zero, or when [WithDelayMode] is set, each call first waits a
// spacing interval that spreads the per-minute quota ([WithRateLimitPerMinute])
// over a 15 minute window. With the default of 50 requests per minute the
// interval is 5 seconds.
//
// # Retry Behaviour
//
// [DefaultRetryPolicy] treats HTTP 429, 500, 503 and 504 and transport errors
// as retryable. Each request target (path and query) has a retry budget of
// [DefaultRetryLimit] failures for the lifetime of the client; the budget is
// never refilled. Retryable statuses wait the spacing interval plus the time
// left until the quota resets. Other 4xx responses are not retried.
//
// # Exports
//
// [Client.ExportToPDF] creates a server-side export job, polls it every
// [WithPollInterval] until it finishes or [WithMaxPolls] is reached, then
// downloads the PDF.
//
// # Logging
//
// Implement [RequestLogger] and supply it via [WithRequestLogger] to
// integrate with your logging library. The default [NoopLogger] discards
// all log output.
package quip
