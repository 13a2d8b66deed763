package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExhausted marks an error returned after the attempt budget ran out;
// the underlying cause stays wrapped alongside it.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy controls how Do spaces its attempts. Delay doubles after every
// failed attempt, capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Do runs op until it succeeds, the error is not retryable, the attempts are
// exhausted, or ctx is cancelled. The last error is always wrapped so callers
// can inspect the underlying cause.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context error: %w", err)
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("context error: %w", err)
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

// TransientSchema reports whether err looks like the backend's schema is not
// yet visible (fresh migration, reloading schema cache). This is the only
// class of persistence errors the batch writer retries.
func TransientSchema(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "schema cache") ||
		strings.Contains(msg, "schema is not yet") ||
		strings.Contains(msg, "pgrst002")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
