package scheduler_test

import (
	"net/url"
	"sync"
	"testing"

	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/stretchr/testify/require"
)

// mockFinalizer captures the final crawl statistics
type mockFinalizer struct {
	mu    sync.Mutex
	calls int
	stats metadata.CrawlStats
}

func (m *mockFinalizer) RecordFinalCrawlStats(stats metadata.CrawlStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.stats = stats
}

// pageSink records page events and discards everything else
type pageSink struct {
	metadata.NoopSink
	mu     sync.Mutex
	events []metadata.PageEvent
}

func (p *pageSink) RecordPage(event metadata.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *pageSink) outcomes() map[string]metadata.PageOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]metadata.PageOutcome, len(p.events))
	for _, e := range p.events {
		out[e.URL] = e.Outcome
	}
	return out
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

// testConfig returns a builder tuned for fast in-memory crawls.
func testConfig(t *testing.T, seed string) *config.Config {
	t.Helper()
	return config.WithDefault(mustURL(t, seed)).
		WithSettleDelay(0).
		WithSkipSeedCheck(true).
		WithRandomSeed(1)
}

func build(t *testing.T, builder *config.Config) config.Config {
	t.Helper()
	cfg, err := builder.Build()
	require.NoError(t, err)
	return cfg
}
