package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func retryAll(error) Action { return Retry }

func TestDo_SuccessFirstAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Second}

	calls := 0
	val, err := Do(context.Background(), clock, policy, retryAll, func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 5, InitialBackoff: time.Second}
	permanent := errors.New("permanent")

	calls := 0
	_, err := Do(context.Background(), clock, policy, func(error) Action { return Stop }, func() (int, error) {
		calls++
		return 0, permanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 5, InitialBackoff: time.Second}

	calls := 0
	done := make(chan struct{})
	var val string
	var err error
	go func() {
		defer close(done)
		val, err = Do(context.Background(), clock, policy, retryAll, func() (string, error) {
			calls++
			if calls < 3 {
				return "", errTransient
			}
			return "eventually", nil
		})
	}()

	// Two failed attempts, two backoff sleeps (1s, then 2s).
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	<-done

	require.NoError(t, err)
	assert.Equal(t, "eventually", val)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Second}

	calls := 0
	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = Do(context.Background(), clock, policy, retryAll, func() (int, error) {
			calls++
			return 0, errTransient
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	<-done

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDo_BackoffDoublesAndCaps(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var backoffs []time.Duration
	policy := Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			backoffs = append(backoffs, backoff)
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Do(context.Background(), clock, policy, retryAll, func() (int, error) {
			return 0, errTransient
		})
	}()

	for i := 0; i < 4; i++ {
		clock.BlockUntil(1)
		clock.Advance(2 * time.Second)
	}
	<-done

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, backoffs)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 5, InitialBackoff: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = Do(ctx, clock, policy, retryAll, func() (int, error) {
			return 0, errTransient
		})
	}()

	clock.BlockUntil(1)
	cancel()
	<-done

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
