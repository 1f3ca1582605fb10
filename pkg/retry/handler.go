package retry

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rohmanhakim/capture-crawler/pkg/failure"
	"github.com/rohmanhakim/capture-crawler/pkg/timeutil"
)

// Retry calls fn up to MaxAttempts times, waiting an exponential backoff with
// jitter between attempts. Only errors reporting IsRetryable() == true are
// retried; anything else is returned as-is after the first attempt.
// Cancelling ctx aborts the wait between attempts.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func(ctx context.Context) (T, failure.ClassifiedError),
) Result[T] {
	var zero T
	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			value: zero,
			err: &RetryError{
				Message:   "max attempts must be at least 1",
				Cause:     ErrZeroAttempt,
				Retryable: false,
			},
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))
	var lastErr failure.ClassifiedError

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return Result[T]{value: value, attempts: attempt}
		}
		lastErr = err

		if !isErrorRetryable(err) {
			return Result[T]{value: zero, err: err, attempts: attempt}
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, rng, retryParam.BackoffParam)
		if sleepErr := timeutil.SleepContext(ctx, delay); sleepErr != nil {
			return Result[T]{
				value: zero,
				err: &RetryError{
					Message:   fmt.Sprintf("stopped after %d attempts: %v", attempt, sleepErr),
					Cause:     ErrCancelled,
					Retryable: false,
					Last:      lastErr,
				},
				attempts: attempt,
			}
		}
	}

	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts, last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true,
			Last:      lastErr,
		},
		attempts: retryParam.MaxAttempts,
	}
}

func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}
	return false
}
