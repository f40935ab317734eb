// Package retry runs an operation repeatedly while it fails with a retryable
// error, sleeping a random interval between attempts.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes when and how long to retry. The zero value makes a single attempt.
type Policy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	// Retryable reports whether err should trigger another attempt. A nil
	// Retryable retries nothing.
	Retryable func(err error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// NextBackoff returns a uniformly random wait in [MinWait, MaxWait].
func (p Policy) NextBackoff() time.Duration {
	if p.MaxWait <= p.MinWait {
		return p.MinWait
	}
	return p.MinWait + time.Duration(rand.Int63n(int64(p.MaxWait-p.MinWait+1)))
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. onWait, when set, is called before every backoff sleep
// with the attempt that just failed.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onWait func(attempt int, wait time.Duration)) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	limit := p.attempts()
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= limit {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := p.NextBackoff()
		if onWait != nil {
			onWait(attempt, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, serr)
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
