package render_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/config"
)

// fakePage answers Evaluate with a canned JSON result after delay, or
// blocks until ctx ends when delay is negative.
type fakePage struct {
	result string
	err    error
	delay  time.Duration
}

func (f *fakePage) Navigate(ctx context.Context, url string, wait config.WaitCondition, timeout time.Duration) error {
	return nil
}

func (f *fakePage) Evaluate(ctx context.Context, expression string, out any) error {
	if f.delay < 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	if out == nil || f.result == "" {
		return nil
	}
	return json.Unmarshal([]byte(f.result), out)
}

func (f *fakePage) Close() error { return nil }
