package frontier_test

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTarget(t *testing.T, raw string) frontier.CrawlTarget {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return frontier.NewCrawlTarget(*u)
}

func targets(t *testing.T, raws ...string) []frontier.CrawlTarget {
	t.Helper()
	out := make([]frontier.CrawlTarget, 0, len(raws))
	for _, raw := range raws {
		out = append(out, mustTarget(t, raw))
	}
	return out
}

func TestCrawlTarget(t *testing.T) {
	target := mustTarget(t, "https://example.com/a?x=1")
	assert.Equal(t, "https://example.com/a?x=1", target.String())
	assert.Equal(t, "example.com", target.Host())
	assert.False(t, target.IsZero())
	assert.True(t, frontier.CrawlTarget{}.IsZero())

	u := target.URL()
	u.Path = "/mutated"
	assert.Equal(t, "https://example.com/a?x=1", target.String())
}

func TestFrontier_SeedCountsAsDispatched(t *testing.T) {
	f := frontier.NewFrontier(0)
	seed := mustTarget(t, "https://example.com/")

	assert.True(t, f.Seed(seed))
	assert.False(t, f.Seed(seed))

	snap := f.Snapshot()
	assert.Equal(t, 1, snap.Dispatched)
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 1, snap.Seen)
	assert.True(t, f.Seen(seed))
}

func TestFrontier_OfferDeduplicates(t *testing.T) {
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/a"))

	result := f.Offer(targets(t,
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/b",
		"https://example.com/c",
	))

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 0, result.Dropped)
	assert.False(t, result.LimitHit)
	assert.Equal(t, 3, f.Snapshot().Dispatched)

	again := f.Offer(targets(t, "https://example.com/b", "https://example.com/c"))
	assert.Equal(t, 0, again.Accepted)
	assert.Equal(t, 2, again.Duplicates)
}

func TestFrontier_LimitAllowsExactlyLimitDiscoveredTargets(t *testing.T) {
	f := frontier.NewFrontier(1)
	f.Seed(mustTarget(t, "https://example.com/"))

	result := f.Offer(targets(t,
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	))

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 4, result.Dropped)
	assert.True(t, result.LimitHit)

	snap := f.Snapshot()
	assert.Equal(t, 2, snap.Dispatched)
	assert.True(t, snap.LimitHit)
	// dropped targets never enter the seen set
	assert.False(t, f.Seen(mustTarget(t, "https://example.com/2")))

	later := f.Offer(targets(t, "https://example.com/6"))
	assert.Equal(t, 0, later.Accepted)
	assert.Equal(t, 1, later.Dropped)
	assert.Equal(t, 2, f.Snapshot().Dispatched)
}

// The seed does not count against the limit: total dispatched is limit+1.
func TestFrontier_LimitExemptsSeed(t *testing.T) {
	for _, limit := range []int{1, 2, 5} {
		f := frontier.NewFrontier(limit)
		f.Seed(mustTarget(t, "https://example.com/"))

		batch := make([]frontier.CrawlTarget, 0, 10)
		for i := 0; i < 10; i++ {
			batch = append(batch, mustTarget(t, fmt.Sprintf("https://example.com/p%d", i)))
		}
		result := f.Offer(batch)

		assert.Equal(t, limit, result.Accepted, "limit %d", limit)
		assert.Equal(t, limit+1, f.Snapshot().Dispatched, "limit %d", limit)
	}
}

func TestFrontier_LimitAcrossBatches(t *testing.T) {
	f := frontier.NewFrontier(3)
	f.Seed(mustTarget(t, "https://example.com/"))

	first := f.Offer(targets(t, "https://example.com/1", "https://example.com/2"))
	second := f.Offer(targets(t, "https://example.com/1", "https://example.com/3", "https://example.com/4"))

	assert.Equal(t, 2, first.Accepted)
	assert.Equal(t, 1, second.Accepted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, 1, second.Dropped)
	assert.True(t, second.LimitHit)
	assert.Equal(t, 4, f.Snapshot().Dispatched)
}

func TestFrontier_NextIsFIFOAndTracksInFlight(t *testing.T) {
	ctx := context.Background()
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/"))
	f.Offer(targets(t, "https://example.com/a", "https://example.com/b"))

	first, ok := f.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/", first.String())

	second, ok := f.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", second.String())

	snap := f.Snapshot()
	assert.Equal(t, 2, snap.InFlight)
	assert.Equal(t, 1, snap.Pending)

	f.Done()
	f.Done()
	snap = f.Snapshot()
	assert.Equal(t, 0, snap.InFlight)
	assert.Equal(t, 2, snap.Completed)
}

func TestFrontier_NextReportsIdleWhenEmpty(t *testing.T) {
	f := frontier.NewFrontier(0)

	_, ok := f.Next(context.Background())
	assert.False(t, ok)

	snap := f.Snapshot()
	assert.True(t, snap.Idle)
	assert.True(t, snap.Closed)
}

func TestFrontier_NextWaitsForInFlightWork(t *testing.T) {
	ctx := context.Background()
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/"))

	_, ok := f.Next(ctx)
	require.True(t, ok)

	got := make(chan frontier.CrawlTarget, 1)
	go func() {
		target, ok := f.Next(ctx)
		if ok {
			got <- target
		}
		close(got)
	}()

	// queue is empty but one target is in flight: the waiter must block
	select {
	case <-got:
		t.Fatal("Next returned while work was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	f.Offer(targets(t, "https://example.com/child"))
	f.Done()

	select {
	case target := <-got:
		assert.Equal(t, "https://example.com/child", target.String())
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Offer")
	}
}

func TestFrontier_DoneWakesIdleWaiters(t *testing.T) {
	ctx := context.Background()
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/"))

	_, ok := f.Next(ctx)
	require.True(t, ok)

	var wg sync.WaitGroup
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := f.Next(ctx)
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	f.Done()
	wg.Wait()
	close(results)

	for ok := range results {
		assert.False(t, ok)
	}
	assert.True(t, f.Snapshot().Idle)
}

func TestFrontier_CloseUnblocksAndDropsOffers(t *testing.T) {
	ctx := context.Background()
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/"))
	_, ok := f.Next(ctx)
	require.True(t, ok)

	done := make(chan bool)
	go func() {
		_, ok := f.Next(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	f.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Next")
	}

	result := f.Offer(targets(t, "https://example.com/late"))
	assert.Equal(t, 1, result.Dropped)
	assert.False(t, f.Snapshot().Idle)
	assert.False(t, f.Seed(mustTarget(t, "https://example.com/other")))
}

func TestFrontier_ContextCancelUnblocksNext(t *testing.T) {
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/"))
	_, ok := f.Next(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := f.Next(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock Next")
	}
}

func TestFrontier_DoneWithoutInFlightIsNoop(t *testing.T) {
	f := frontier.NewFrontier(0)
	f.Done()
	assert.Equal(t, 0, f.Snapshot().Completed)
}

// Many workers discover overlapping link sets concurrently; every URL must
// still be dispatched exactly once.
func TestFrontier_ConcurrentOfferDispatchesEachURLOnce(t *testing.T) {
	const pages = 200
	ctx := context.Background()
	f := frontier.NewFrontier(0)
	f.Seed(mustTarget(t, "https://example.com/0"))

	var mu sync.Mutex
	visits := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				target, ok := f.Next(ctx)
				if !ok {
					return
				}
				mu.Lock()
				visits[target.String()]++
				mu.Unlock()

				// every page links to every page
				batch := make([]frontier.CrawlTarget, 0, pages)
				for i := 0; i < pages; i++ {
					batch = append(batch, mustTarget(t, fmt.Sprintf("https://example.com/%d", i)))
				}
				f.Offer(batch)
				f.Done()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, visits, pages)
	for u, n := range visits {
		assert.Equal(t, 1, n, "visited %s %d times", u, n)
	}
	snap := f.Snapshot()
	assert.Equal(t, pages, snap.Dispatched)
	assert.True(t, snap.Idle)
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 0, snap.InFlight)
}

func TestFrontier_ConcurrentLimitNeverExceeded(t *testing.T) {
	const limit = 17
	ctx := context.Background()
	f := frontier.NewFrontier(limit)
	f.Seed(mustTarget(t, "https://example.com/seed"))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				target, ok := f.Next(ctx)
				if !ok {
					return
				}
				batch := make([]frontier.CrawlTarget, 0, 20)
				for i := 0; i < 20; i++ {
					batch = append(batch, mustTarget(t, fmt.Sprintf("%s/%d-%d", target.String(), worker, i)))
				}
				f.Offer(batch)
				f.Done()
			}
		}(w)
	}
	wg.Wait()

	snap := f.Snapshot()
	assert.Equal(t, limit+1, snap.Dispatched)
	assert.Equal(t, limit+1, snap.Completed)
	assert.True(t, snap.LimitHit)
}
