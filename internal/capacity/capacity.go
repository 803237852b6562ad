// Package capacity wraps Event.availableCapacity under optimistic
// concurrency. The CAS predicate in internal/store is the sole guarantor
// of no-oversell; this package only shapes the retry loop around it.
package capacity

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"evently/internal/domain"
	"evently/internal/store"
)

// RetryConfig bounds the CAS retry loop, per the configured retry policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the documented retry policy: up to 3
// attempts with delays of 100ms then 200ms between them (BaseDelay
// doubling per attempt, capped at MaxDelay), each jittered in [0.5, 1.0].
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
}

// Controller reserves and restores event capacity.
type Controller struct {
	retry RetryConfig
}

func New(retry RetryConfig) *Controller {
	return &Controller{retry: retry}
}

// Reserve attempts a single CAS decrement of n against expectedVersion.
// It does not retry internally — BookingEngine.Create owns the retry loop
// because a stale version requires rereading the event and recomputing
// totalAmount, not just reattempting the same CAS.
func (c *Controller) Reserve(ctx context.Context, tx store.Tx, eventID uuid.UUID, n, expectedVersion int) (*domain.Event, error) {
	return tx.CompareAndUpdateEventCapacity(ctx, eventID, expectedVersion, -n)
}

// Restore increases availableCapacity by n, retrying on stale version
// until it succeeds or attempts are exhausted; restoring freed capacity
// must not be abandoned mid-retry, since that would leak inventory.
func (c *Controller) Restore(ctx context.Context, tx store.Tx, eventID uuid.UUID, n int) error {
	cfg := c.retry
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts || attempt == 0; attempt++ {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		_, err = tx.CompareAndUpdateEventCapacity(ctx, eventID, event.Version, n)
		if err == nil {
			return nil
		}
		if err != domain.ErrStaleVersion {
			return err
		}
		lastErr = err
		if attempt+1 >= cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.Wrap(domain.ErrServiceUnavailable, ctx.Err())
		case <-time.After(backoff(cfg, attempt)):
		}
	}
	retryable := domain.WithRetryAfter(domain.ErrStaleVersion, time.Second)
	return domain.Wrap(retryable, lastErr)
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay << attempt
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(d) * jitter)
}
