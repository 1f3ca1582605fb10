package limiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter
// Per-host token buckets applied before any request touches a host.
// Responsibilities:
// - Lazily create one bucket per hostname
// - Block callers until their host has a token or the context ends
// A zero rate disables limiting entirely.
type HostLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter that allows perSecond requests per host
// with the given burst. perSecond <= 0 disables limiting.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (h *HostLimiter) Enabled() bool {
	return h != nil && h.limit > 0
}

// Wait blocks until a request to host is allowed.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if !h.Enabled() {
		return ctx.Err()
	}
	return h.bucket(host).Wait(ctx)
}

// Hosts returns the number of hosts seen so far.
func (h *HostLimiter) Hosts() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buckets)
}

func (h *HostLimiter) bucket(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buckets[host]
	if !ok {
		b = rate.NewLimiter(h.limit, h.burst)
		h.buckets[host] = b
	}
	return b
}
