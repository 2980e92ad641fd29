package monitoring

import (
	"context"
	"fmt"
	"time"

	"collabstream/pkg/circuitbreaker"
)

// AddStorageCheck adds a critical check that pings the session store.
func (h *HealthChecker) AddStorageCheck(ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck("storage", func(ctx context.Context) (bool, error) {
		if err := ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout, true)
}

// AddUpstreamCheck reports the upstream provider as degraded while its
// circuit breaker is open. Cached statuses are still served meanwhile.
func (h *HealthChecker) AddUpstreamCheck(state func() circuitbreaker.State) {
	h.AddCheck("upstream", func(ctx context.Context) (bool, error) {
		if s := state(); s == circuitbreaker.StateOpen {
			return false, fmt.Errorf("circuit breaker %s", s)
		}
		return true, nil
	}, 0, false)
}
