package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RetriesTransientThenSucceeds(t *testing.T) {
	g := NewGuard("generation",
		WithMaxAttempts(4),
		WithBaseDelay(time.Millisecond))

	calls := 0
	err := g.Do(context.Background(), func() error {
		calls++
		if calls <= 3 {
			return Transient(errors.New("rate limited"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "three transient failures then success within budget")
	assert.Equal(t, StateClosed, g.State())
}

func TestGuard_PermanentFailureSingleAttempt(t *testing.T) {
	g := NewGuard("embedding",
		WithMaxAttempts(4),
		WithBaseDelay(time.Millisecond))

	calls := 0
	err := g.Do(context.Background(), func() error {
		calls++
		return errors.New("invalid input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuard_OpensAndFastFails(t *testing.T) {
	breaker := NewBreaker(2, time.Minute)
	g := NewGuard("generation",
		WithBreaker(breaker),
		WithMaxAttempts(1),
		WithBaseDelay(time.Millisecond))

	boom := func() error { return Transient(errors.New("upstream 503")) }

	require.Error(t, g.Do(context.Background(), boom))
	require.Error(t, g.Do(context.Background(), boom))
	require.Equal(t, StateOpen, g.State())

	calls := 0
	err := g.Do(context.Background(), func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable, "open circuit must not invoke the operation")
	assert.Equal(t, 0, calls)
}

func TestGuard_ProbeGetsSingleAttempt(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	breaker := NewBreaker(1, time.Minute, WithClock(clock))
	g := NewGuard("generation",
		WithBreaker(breaker),
		WithMaxAttempts(5),
		WithBaseDelay(time.Millisecond))

	require.Error(t, g.Do(context.Background(), func() error {
		return Transient(errors.New("boom"))
	}))
	require.Equal(t, StateOpen, g.State())

	advance(time.Minute)

	calls := 0
	err := g.Do(context.Background(), func() error {
		calls++
		return Transient(errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "half-open probe must not be retried internally")
	assert.Equal(t, StateOpen, g.State(), "failed probe reopens")
}

func TestGuard_CanceledProbeDoesNotStickHalfOpen(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	breaker := NewBreaker(1, time.Minute, WithClock(clock))
	g := NewGuard("generation",
		WithBreaker(breaker),
		WithMaxAttempts(1),
		WithBaseDelay(time.Millisecond))

	require.Error(t, g.Do(context.Background(), func() error {
		return Transient(errors.New("upstream 503"))
	}))
	require.Equal(t, StateOpen, g.State())

	advance(time.Minute)

	// The admitted probe is abandoned before the operation ever runs.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := g.Do(canceled, func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)

	// The breaker recovers: after another cooldown a healthy call is
	// admitted and closes it.
	advance(time.Minute)
	err = g.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, g.State())
}

func TestGuard_CancellationDoesNotCountAgainstDependency(t *testing.T) {
	breaker := NewBreaker(1, time.Minute)
	g := NewGuard("embedding",
		WithBreaker(breaker),
		WithMaxAttempts(3),
		WithBaseDelay(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	err := g.Do(ctx, func() error {
		cancel()
		return Transient(errors.New("slow"))
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, g.State(), "caller cancellation is not a dependency failure")
}
