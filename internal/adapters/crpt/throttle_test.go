package crpt

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jitterTolerance absorbs timer wake-up latency; reservations themselves are exact.
const jitterTolerance = 10 * time.Millisecond

func TestNewThrottle_Validation(t *testing.T) {
	_, err := NewThrottle(time.Second, 0)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewThrottle(time.Second, -1)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewThrottle(0, 5)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewThrottle(-time.Second, 5)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestThrottle_MinDelay(t *testing.T) {
	th, err := NewThrottle(time.Minute, 60)
	require.NoError(t, err)
	assert.Equal(t, time.Second, th.MinDelay())

	th, err = NewThrottle(time.Second, 3)
	require.NoError(t, err)
	assert.Equal(t, 333333333*time.Nanosecond, th.MinDelay())
}

func TestThrottle_ZeroMinDelayDoesNotBlock(t *testing.T) {
	th, err := NewThrottle(time.Nanosecond, 1000)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), th.MinDelay())

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, th.AwaitSlot(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottle_FirstSlotIsImmediate(t *testing.T) {
	th, err := NewThrottle(10*time.Second, 1)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, th.AwaitSlot(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottle_SequentialSpacing(t *testing.T) {
	const minDelay = 40 * time.Millisecond
	th, err := NewThrottle(5*minDelay, 5)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, th.AwaitSlot(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 4*minDelay-time.Millisecond)
}

func TestThrottle_ConcurrentSpacing(t *testing.T) {
	const (
		callers  = 12
		minDelay = 50 * time.Millisecond
	)
	th, err := NewThrottle(callers*minDelay, callers)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := th.AwaitSlot(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, callers)
	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		assert.GreaterOrEqual(t, gap, minDelay-jitterTolerance, "gap %d was %v", i, gap)
	}
	assert.GreaterOrEqual(t, grants[len(grants)-1].Sub(start), (callers-1)*minDelay-time.Millisecond)
}

func TestThrottle_Cancellation(t *testing.T) {
	th, err := NewThrottle(time.Hour, 1)
	require.NoError(t, err)
	require.NoError(t, th.AwaitSlot(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = th.AwaitSlot(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_CancelledWaitReturnsReservation(t *testing.T) {
	const minDelay = 200 * time.Millisecond
	th, err := NewThrottle(minDelay, 1)
	require.NoError(t, err)

	t0 := time.Now()
	require.NoError(t, th.AwaitSlot(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- th.AwaitSlot(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.Error(t, <-done)

	require.NoError(t, th.AwaitSlot(context.Background()))
	elapsed := time.Since(t0)
	assert.GreaterOrEqual(t, elapsed, minDelay-jitterTolerance)
	assert.Less(t, elapsed, 2*minDelay-jitterTolerance, "cancelled reservation delayed the next caller")
}

func TestThrottle_ReservationNeverShorterThanMinDelay(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		quota  int
	}{
		{"1s per 9", time.Second, 9},
		{"1s per 17", time.Second, 17},
		{"1m per 33", time.Minute, 33},
		{"1s per 3", time.Second, 3},
		{"1m per 60", time.Minute, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := NewThrottle(tt.window, tt.quota)
			require.NoError(t, err)

			t0 := time.Now()
			require.True(t, th.limiter.AllowN(t0, 1))

			prev := time.Duration(0)
			for i := 1; i <= 5; i++ {
				delay := th.limiter.ReserveN(t0, 1).DelayFrom(t0)
				assert.GreaterOrEqual(t, delay, time.Duration(i)*th.MinDelay(), "reservation %d", i)
				assert.GreaterOrEqual(t, delay-prev, th.MinDelay(), "gap before reservation %d", i)
				prev = delay
			}
		})
	}
}

func TestThrottle_WaitPastDeadlineIsDeadlineExceeded(t *testing.T) {
	th, err := NewThrottle(time.Hour, 1)
	require.NoError(t, err)
	require.NoError(t, th.AwaitSlot(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = th.AwaitSlot(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "wait should fail before the deadline passes")
}

func TestThrottle_CancelledWaitIsCanceled(t *testing.T) {
	th, err := NewThrottle(time.Hour, 1)
	require.NoError(t, err)
	require.NoError(t, th.AwaitSlot(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = th.AwaitSlot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}
