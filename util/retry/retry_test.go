package retry

import (
	"context"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/util/test/mocklogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	logger := mocklogger.NewTestLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Function that will succeed on the first attempt
	successFn := func() (string, error) {
		return "success", nil
	}

	// Function that will fail once then succeed
	staticCallCount := 0
	retryOnceFn := func() (string, error) {
		if staticCallCount == 0 {
			staticCallCount++
			return "", errors.NewNetworkError("rpc unavailable")
		}

		return "success", nil
	}

	// Function that will always fail
	alwaysFailFn := func() (string, error) {
		return "", errors.NewNetworkError("rpc unavailable")
	}

	// Test case 1: Function succeeds on the first try
	result, err := Retry(ctx, logger, successFn,
		WithRetryCount(3),
		WithBackoffMultiplier(2),
		WithBackoffDurationType(time.Millisecond),
		WithMessage("fetching chain state"))
	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	logger.AssertNumberOfCalls(t, "Warnf", 0)
	logger.Reset()

	// Test case 2: exponential backoff with cap
	result, err = Retry(ctx, logger, retryOnceFn,
		WithExponentialBackoff(),
		WithBackoffDurationType(5*time.Millisecond),
		WithBackoffFactor(2.0),
		WithMaxBackoff(20*time.Millisecond),
		WithRetryCount(3))
	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	logger.AssertNumberOfCalls(t, "Warnf", 1)
	logger.Reset()

	// Test case 3: infinite retry, succeeds after one failure
	staticCallCount = 0
	result, err = Retry(ctx, logger, retryOnceFn,
		WithInfiniteRetry(),
		WithExponentialBackoff(),
		WithBackoffDurationType(time.Millisecond),
		WithMaxBackoff(10*time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	logger.Reset()

	// Test case 4: context deadline stops infinite retry
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = Retry(ctx, logger, alwaysFailFn,
		WithInfiniteRetry(),
		WithExponentialBackoff(),
		WithBackoffDurationType(5*time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestRetryReturnsLastError(t *testing.T) {
	originalSleepFunc := sleepFunc
	defer func() { sleepFunc = originalSleepFunc }()

	var recordedSleeps []time.Duration
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		recordedSleeps = append(recordedSleeps, d)
		return nil
	}

	logger := mocklogger.NewTestLogger()
	calls := 0

	_, err := Retry(context.Background(), logger, func() (int, error) {
		calls++
		return 0, errors.NewExhaustedError("attempt %d", calls)
	}, WithRetryCount(3), WithBackoffMultiplier(1), WithBackoffDurationType(time.Millisecond))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExhausted))
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)

	// no sleep after the final attempt
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, recordedSleeps)
	logger.AssertNumberOfCalls(t, "Warnf", 2)
}

func TestRetryIfStopsOnFatalError(t *testing.T) {
	logger := mocklogger.NewTestLogger()
	calls := 0

	_, err := Retry(context.Background(), logger, func() (string, error) {
		calls++
		return "", errors.NewSigningConstraintError("chunk too large")
	}, WithRetryCount(5), WithBackoffDurationType(time.Millisecond), WithRetryIf(errors.IsRetryableError))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, errors.ErrSigningConstraint))
}

func TestExponentialSleepsAreCapped(t *testing.T) {
	originalSleepFunc := sleepFunc
	defer func() { sleepFunc = originalSleepFunc }()

	var recordedSleeps []time.Duration
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		recordedSleeps = append(recordedSleeps, d)
		return nil
	}

	_, _ = Retry(context.Background(), mocklogger.NewTestLogger(), func() (int, error) {
		return 0, errors.NewNetworkError("down")
	}, WithRetryCount(5), WithExponentialBackoff(), WithBackoffDurationType(10*time.Millisecond),
		WithBackoffFactor(2.0), WithMaxBackoff(30*time.Millisecond))

	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		30 * time.Millisecond,
	}, recordedSleeps)
}

func TestCappedExponentialBackoff(t *testing.T) {
	// Test exponential backoff without hitting the cap
	backoff := CappedExponentialBackoff(100*time.Millisecond, 2.0, 1*time.Second)
	assert.Equal(t, 200*time.Millisecond, backoff)

	// Test exponential backoff hitting the cap
	backoff = CappedExponentialBackoff(600*time.Millisecond, 2.0, 1*time.Second)
	assert.Equal(t, 1*time.Second, backoff)

	// Test with different factor
	backoff = CappedExponentialBackoff(100*time.Millisecond, 1.5, 1*time.Second)
	assert.Equal(t, 150*time.Millisecond, backoff)

	// no cap
	backoff = CappedExponentialBackoff(time.Minute, 2.0, 0)
	assert.Equal(t, 2*time.Minute, backoff)
}

func TestBackoffAndSleep(t *testing.T) {
	t.Run("completes sleep successfully", func(t *testing.T) {
		start := time.Now()
		err := BackoffAndSleep(context.Background(), 1, 1, 10*time.Millisecond)

		assert.NoError(t, err)
		// (1*1)+1 = 2 * 10ms
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancels on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- BackoffAndSleep(ctx, 2, 1, 100*time.Millisecond)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.Equal(t, context.Canceled, err)
		case <-time.After(time.Second):
			t.Fatal("BackoffAndSleep did not cancel in time")
		}
	})

	t.Run("respects backoff calculation", func(t *testing.T) {
		originalSleepFunc := sleepFunc
		defer func() { sleepFunc = originalSleepFunc }()

		var recordedDuration time.Duration
		sleepFunc = func(ctx context.Context, d time.Duration) error {
			recordedDuration = d
			return nil
		}

		tests := []struct {
			retries    int
			multiplier int
			duration   time.Duration
			expected   time.Duration
		}{
			{0, 1, time.Second, 1 * time.Second},
			{1, 2, time.Second, 3 * time.Second},
			{3, 3, time.Second, 10 * time.Second},
			{2, 5, time.Millisecond, 11 * time.Millisecond},
		}

		for _, tc := range tests {
			err := BackoffAndSleep(context.Background(), tc.retries, tc.multiplier, tc.duration)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, recordedDuration)
		}
	})
}
