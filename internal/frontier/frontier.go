package frontier

import (
	"context"
	"sync"
)

/*
Frontier Responsibilities
- Deduplicate URLs across the whole crawl (seen set never shrinks)
- Hold pending targets in FIFO order
- Count dispatched and in-flight targets
- Enforce the page-count limit at enqueue time
- Detect idleness: queue empty AND nothing in flight
- Knows nothing about:
	- scope or exclusion rules
	- probing
	- rendering
	- link extraction

Every mutation happens under one mutex, so check-and-insert into the seen
set, the limit check and the in-flight bookkeeping are observed atomically
by all workers.
*/
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	seen  Set[string]
	queue *FIFOQueue[CrawlTarget]

	// limit caps targets dispatched through Offer. The seed is exempt.
	limit int

	dispatched int
	discovered int
	inFlight   int
	completed  int
	limitHit   bool

	idle   bool
	closed bool
}

// OfferResult summarizes what happened to one batch handed to Offer.
type OfferResult struct {
	Accepted   int
	Duplicates int
	// Dropped counts targets turned away because the limit was reached or
	// the frontier was closed. They are not marked seen.
	Dropped  int
	LimitHit bool
}

// Snapshot is a consistent, read-only view of the frontier counters.
type Snapshot struct {
	Seen       int
	Pending    int
	InFlight   int
	Dispatched int
	Completed  int
	Limit      int
	LimitHit   bool
	Idle       bool
	Closed     bool
}

// NewFrontier creates an empty frontier. limit <= 0 means unlimited.
func NewFrontier(limit int) *Frontier {
	if limit < 0 {
		limit = 0
	}
	f := &Frontier{
		seen:  NewSet[string](),
		queue: NewFIFOQueue[CrawlTarget](),
		limit: limit,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Seed enqueues the crawl's starting target. It is counted as dispatched
// but does not consume the limit. Returns false if the target was already
// seen or the frontier is closed.
func (f *Frontier) Seed(target CrawlTarget) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || !f.seen.AddIfAbsent(target.String()) {
		return false
	}
	f.queue.Enqueue(target)
	f.dispatched++
	f.cond.Signal()
	return true
}

// Offer enqueues a batch of candidate targets discovered on one page.
//
// For each target, in order:
//   - already seen: skipped
//   - limit reached: the rest of the batch is dropped, LimitHit is set
//   - otherwise: marked seen, dispatched count incremented, enqueued
//
// The limit is checked before the seen-set insert, so a dropped target
// stays unseen.
func (f *Frontier) Offer(batch []CrawlTarget) OfferResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result OfferResult
	if f.closed {
		result.Dropped = len(batch)
		result.LimitHit = f.limitHit
		return result
	}

	for i, target := range batch {
		if f.seen.Contains(target.String()) {
			result.Duplicates++
			continue
		}
		if f.limit > 0 && f.discovered >= f.limit {
			f.limitHit = true
			result.Dropped = len(batch) - i
			break
		}
		f.seen.Add(target.String())
		f.queue.Enqueue(target)
		f.discovered++
		f.dispatched++
		result.Accepted++
	}

	result.LimitHit = f.limitHit
	if result.Accepted > 0 {
		f.cond.Broadcast()
	}
	return result
}

// Next hands out the next pending target and marks it in flight. It blocks
// while the queue is empty but other targets are still in flight, since
// those may yield more work. It returns false once the frontier is idle,
// closed, or ctx is done. Every successful Next must be paired with Done.
func (f *Frontier) Next(ctx context.Context) (CrawlTarget, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed || ctx.Err() != nil {
			return CrawlTarget{}, false
		}
		if target, ok := f.queue.Dequeue(); ok {
			f.inFlight++
			return target, true
		}
		if f.inFlight == 0 {
			f.idle = true
			f.closed = true
			f.cond.Broadcast()
			return CrawlTarget{}, false
		}
		f.cond.Wait()
	}
}

// Done marks one in-flight target as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight == 0 {
		return
	}
	f.inFlight--
	f.completed++
	if f.inFlight == 0 {
		f.cond.Broadcast()
	}
}

// Close stops the frontier: pending targets are abandoned, further Offers
// are dropped and every blocked Next returns false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// Seen reports whether target was ever admitted.
func (f *Frontier) Seen(target CrawlTarget) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Contains(target.String())
}

func (f *Frontier) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Snapshot{
		Seen:       f.seen.Size(),
		Pending:    f.queue.Size(),
		InFlight:   f.inFlight,
		Dispatched: f.dispatched,
		Completed:  f.completed,
		Limit:      f.limit,
		LimitHit:   f.limitHit,
		Idle:       f.idle,
		Closed:     f.closed,
	}
}
