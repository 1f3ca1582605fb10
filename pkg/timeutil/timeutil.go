package timeutil

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ComputeJitter returns a uniformly distributed duration in [0, max).
// A non-positive max yields 0.
func ComputeJitter(max time.Duration, rng *rand.Rand) time.Duration {
	if max <= 0 || rng == nil {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay computes the delay before retry number backoffCount
// (1-based): initial * multiplier^(backoffCount-1), capped at the param's
// max duration, plus jitter.
func ExponentialBackoffDelay(
	backoffCount int,
	jitter time.Duration,
	rng *rand.Rand,
	param BackoffParam,
) time.Duration {
	if backoffCount < 1 {
		backoffCount = 1
	}
	raw := float64(param.InitialDuration()) * math.Pow(param.Multiplier(), float64(backoffCount-1))
	delay := time.Duration(raw)
	if param.MaxDuration() > 0 && (raw > float64(param.MaxDuration()) || delay < 0) {
		delay = param.MaxDuration()
	}
	return delay + ComputeJitter(jitter, rng)
}

// SleepContext waits for d or until ctx is done, whichever happens first.
// It returns ctx.Err() when the context won the race.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
