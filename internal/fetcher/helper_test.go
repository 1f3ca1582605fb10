package fetcher_test

import (
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/urlutil"
)

func mustTarget(t *testing.T, raw string) frontier.CrawlTarget {
	t.Helper()
	u, err := urlutil.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize %q: %v", raw, err)
	}
	return frontier.NewCrawlTarget(u)
}

type probeRecord struct {
	url      string
	decision string
	status   int
}

// recordingSink captures probe and error events.
type recordingSink struct {
	metadata.NoopSink
	mu     sync.Mutex
	probes []probeRecord
	errors []metadata.ErrorCause
}

func (r *recordingSink) RecordProbe(url string, decision string, statusCode int, contentType string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes = append(r.probes, probeRecord{url: url, decision: decision, status: statusCode})
}

func (r *recordingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, cause)
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("port of %q: %v", rawURL, err)
	}
	return u.Hostname(), port
}
