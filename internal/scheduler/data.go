package scheduler

import (
	"sync"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
)

// State is a phase of the crawl lifecycle. Phases only move forward.
type State int32

const (
	StateInitializing State = iota
	StateSeeding
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateSeeding:
		return "seeding"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CrawlResult summarizes a finished crawl.
type CrawlResult struct {
	CrawlID string
	Seed    string
	Scope   string
	// Dispatched counts every target that entered the frontier, seed included.
	Dispatched     int
	Rendered       int
	Partial        int
	CapturedDirect int
	Skipped        int
	Failed         int
	// NavigationFailures counts navigations that errored or timed out.
	NavigationFailures int
	LimitHit           bool
	Interrupted        bool
	Duration           time.Duration
}

// pageCounts tallies page outcomes across workers.
type pageCounts struct {
	mu                 sync.Mutex
	byOutcome          map[metadata.PageOutcome]int
	navigationFailures int
}

func newPageCounts() *pageCounts {
	return &pageCounts{byOutcome: make(map[metadata.PageOutcome]int)}
}

func (p *pageCounts) add(outcome metadata.PageOutcome, navigationFailed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byOutcome[outcome]++
	if navigationFailed {
		p.navigationFailures++
	}
}

func (p *pageCounts) get(outcome metadata.PageOutcome) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byOutcome[outcome]
}

func (p *pageCounts) navFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigationFailures
}
