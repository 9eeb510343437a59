package quip

import "sync"

// RetryRegistry counts failed attempts per request target. Counts are never
// reset, so once a target exceeds the ceiling it stays non-retryable for the
// lifetime of the client.
type RetryRegistry struct {
	mu       sync.Mutex
	ceiling  int
	attempts map[string]int
}

func NewRetryRegistry(ceiling int) *RetryRegistry {
	return &RetryRegistry{
		ceiling:  ceiling,
		attempts: make(map[string]int),
	}
}

// ShouldRetry records one more failed attempt for target and reports whether
// another try is still allowed. Every call consumes a retry credit, whether or
// not the caller goes on to retry.
func (r *RetryRegistry) ShouldRetry(target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[target]++

	return r.attempts[target] <= r.ceiling
}

func (r *RetryRegistry) Attempts(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attempts[target]
}

func (r *RetryRegistry) Ceiling() int {
	return r.ceiling
}
