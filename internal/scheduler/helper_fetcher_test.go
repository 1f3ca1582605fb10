package scheduler_test

import (
	"context"
	"sync"

	"github.com/rohmanhakim/capture-crawler/internal/fetcher"
	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
	"github.com/stretchr/testify/mock"
)

// fakeProber renders everything unless a decision is registered for a URL.
type fakeProber struct {
	mu        sync.Mutex
	decisions map[string]fetcher.ProbeResult
	probed    []string
}

func newFakeProber() *fakeProber {
	return &fakeProber{decisions: make(map[string]fetcher.ProbeResult)}
}

func (p *fakeProber) set(url string, result fetcher.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions[url] = result
}

func (p *fakeProber) Probe(ctx context.Context, target frontier.CrawlTarget) fetcher.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, target.String())
	if result, ok := p.decisions[target.String()]; ok {
		return result
	}
	return fetcher.ProbeResult{Decision: fetcher.DecisionRender, StatusCode: 200, ContentType: "text/html"}
}

// relayMock is a testify mock for the capture relay
type relayMock struct {
	mock.Mock
}

func (r *relayMock) Capture(ctx context.Context, target frontier.CrawlTarget) failure.ClassifiedError {
	args := r.Called(ctx, target.String())
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(failure.ClassifiedError)
}
