package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"browseriq/internal/logging"
	"browseriq/internal/metrics"
)

// linearBackOff waits attempt*interval between tries: 1s, 2s, 3s for the
// default budget. Not safe for reuse across concurrent operations; build one
// per request.
type linearBackOff struct {
	interval time.Duration
	attempt  int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.interval
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// doWithRetry runs op up to maxRetries times, backing off linearly between
// attempts. Client errors (4xx) are wrapped in backoff.Permanent by op and
// abort immediately. The whole loop shares the caller's context deadline;
// the returned error wraps the last failure with the attempt count.
func doWithRetry(ctx context.Context, provider string, maxRetries int, op func() (string, error)) (string, error) {
	start := time.Now()
	attempt := 0

	wrapped := func() (string, error) {
		attempt++
		out, err := op()
		if err != nil {
			if attempt >= maxRetries {
				return "", backoff.Permanent(err)
			}
			logging.LLMWarn("%s request attempt %d/%d failed: %v", provider, attempt, maxRetries, err)
		}
		return out, err
	}

	policy := backoff.WithContext(&linearBackOff{interval: time.Second}, ctx)
	out, err := backoff.RetryWithData(wrapped, policy)

	metrics.ObserveLLMRequest(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s request failed after %d attempt(s): %w", provider, attempt, err)
	}
	logging.LLMDebug("%s request succeeded on attempt %d in %v", provider, attempt, time.Since(start))
	return out, nil
}
