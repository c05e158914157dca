package retry

import (
	"context"
	"time"

	"github.com/bundleminer/bundleminer/ulogger"
)

type SetOptions struct {
	RetryCount          int
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	Message             string
	InfiniteRetry       bool
	ExponentialBackoff  bool
	BackoffFactor       float64
	MaxBackoff          time.Duration
	RetryIf             func(err error) bool
}

type Options func(s *SetOptions)

func WithRetryCount(retryCount int) Options {
	return func(s *SetOptions) {
		s.RetryCount = retryCount
	}
}

func WithBackoffMultiplier(backoffMultiplier int) Options {
	return func(s *SetOptions) {
		s.BackoffMultiplier = backoffMultiplier
	}
}

func WithBackoffDurationType(backoffDurationType time.Duration) Options {
	return func(s *SetOptions) {
		s.BackoffDurationType = backoffDurationType
	}
}

func WithMessage(message string) Options {
	return func(s *SetOptions) {
		s.Message = message
	}
}

// WithInfiniteRetry retries until the function succeeds or the context is done.
func WithInfiniteRetry() Options {
	return func(s *SetOptions) {
		s.InfiniteRetry = true
	}
}

// WithExponentialBackoff switches from linear to capped exponential backoff.
func WithExponentialBackoff() Options {
	return func(s *SetOptions) {
		s.ExponentialBackoff = true
	}
}

func WithBackoffFactor(factor float64) Options {
	return func(s *SetOptions) {
		s.BackoffFactor = factor
	}
}

func WithMaxBackoff(maxBackoff time.Duration) Options {
	return func(s *SetOptions) {
		s.MaxBackoff = maxBackoff
	}
}

// WithRetryIf stops retrying as soon as the predicate returns false for an error.
func WithRetryIf(fn func(err error) bool) Options {
	return func(s *SetOptions) {
		s.RetryIf = fn
	}
}

// Retry calls f until it succeeds, the retry budget is used up or the context is done.
// The last error returned by f is returned when all attempts fail.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Options) (T, error) {
	setOptions := &SetOptions{
		RetryCount:          3,
		BackoffMultiplier:   2,
		BackoffDurationType: time.Second,
		Message:             "retrying",
		BackoffFactor:       2.0,
		MaxBackoff:          30 * time.Second,
	}

	for _, opt := range opts {
		opt(setOptions)
	}

	var (
		result  T
		err     error
		backoff = setOptions.BackoffDurationType
	)

	for i := 0; setOptions.InfiniteRetry || i < setOptions.RetryCount; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if setOptions.RetryIf != nil && !setOptions.RetryIf(err) {
			return result, err
		}

		if !setOptions.InfiniteRetry && i == setOptions.RetryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d): %v", setOptions.Message, i+1, err)

		if setOptions.ExponentialBackoff {
			if sleepErr := sleepFunc(ctx, backoff); sleepErr != nil {
				return result, sleepErr
			}

			backoff = CappedExponentialBackoff(backoff, setOptions.BackoffFactor, setOptions.MaxBackoff)

			continue
		}

		if sleepErr := BackoffAndSleep(ctx, i, setOptions.BackoffMultiplier, setOptions.BackoffDurationType); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
