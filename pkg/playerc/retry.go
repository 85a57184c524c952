package playerc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/player-project/playerd/pkg/version"
)

// Retry defaults.
const (
	DefaultRetryInitial = 250 * time.Millisecond
	DefaultRetryMax     = 10 * time.Second
	retryMultiplier     = 2.0
	retryJitter         = 0.25
)

// Backoff yields exponentially growing delays with jitter.
type Backoff struct {
	current  time.Duration
	initial  time.Duration
	max      time.Duration
	jitter   float64
	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a backoff starting at initial and capped at max. Zero
// values take the defaults. A negative jitter disables jitter.
func NewBackoff(initial, max time.Duration, jitter float64) *Backoff {
	if initial <= 0 {
		initial = DefaultRetryInitial
	}
	if max < initial {
		max = DefaultRetryMax
		if max < initial {
			max = initial
		}
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{
		current: initial,
		initial: initial,
		max:     max,
		jitter:  jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay and advances the backoff.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	if b.jitter > 0 {
		delay += time.Duration(float64(b.current) * b.jitter * b.rng.Float64())
	}
	b.attempts++
	b.current = min(time.Duration(float64(b.current)*retryMultiplier), b.max)
	return delay
}

// Current returns the base delay of the next call to Next.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Attempts returns how many delays were handed out since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
	b.attempts = 0
}

// RetryConfig controls DialRetry.
type RetryConfig struct {
	// Limit is the number of connection attempts. Zero retries until ctx
	// is done.
	Limit int

	// Initial and Max bound the delay between attempts.
	Initial time.Duration
	Max     time.Duration
}

// DialRetry is Dial with repeated attempts while the server is unreachable.
// A server with an incompatible version is not retried.
func DialRetry(ctx context.Context, address string, cfg Config, retry RetryConfig) (*Client, error) {
	b := NewBackoff(retry.Initial, retry.Max, retryJitter)
	for attempt := 1; ; attempt++ {
		c, err := Dial(ctx, address, cfg)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, version.ErrIncompatible) {
			return nil, err
		}
		if retry.Limit > 0 && attempt >= retry.Limit {
			return nil, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		delay := b.Next()
		if cfg.Logger != nil {
			cfg.Logger.Debug("connect failed, retrying", "address", address, "attempt", attempt, "delay", delay, "error", err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
}
