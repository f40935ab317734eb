package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func testPolicy(max int, slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: max,
		MinWait:     10 * time.Second,
		MaxWait:     30 * time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var slept []time.Duration
	var waits []int
	calls := 0

	err := testPolicy(5, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, func(attempt int, _ time.Duration) { waits = append(waits, attempt) })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, waits)
	require.Len(t, slept, 2)
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestDo_Exhausted(t *testing.T) {
	var slept []time.Duration
	calls := 0
	err := testPolicy(4, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, nil)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Len(t, slept, 3)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	var slept []time.Duration
	calls := 0
	err := testPolicy(5, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	}, nil)

	assert.ErrorIs(t, err, errFatal)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDo_ZeroPolicySingleAttempt(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, nil)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{
		MaxAttempts: 3,
		MinWait:     time.Hour,
		MaxWait:     time.Hour,
		Retryable:   func(error) bool { return true },
	}
	err := p.Do(ctx, func(context.Context) error { return errTransient }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextBackoffBounds(t *testing.T) {
	p := Policy{MinWait: time.Second, MaxWait: 2 * time.Second}
	for i := 0; i < 100; i++ {
		d := p.NextBackoff()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	assert.Equal(t, 5*time.Second, Policy{MinWait: 5 * time.Second, MaxWait: time.Second}.NextBackoff())
}
