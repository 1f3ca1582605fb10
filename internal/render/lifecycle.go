package render

import (
	"sync"

	"github.com/chromedp/cdproto/cdp"
)

type loaderKey struct {
	frame  cdp.FrameID
	loader cdp.LoaderID
}

// LifecycleWaiter collects page lifecycle events for one navigation and
// signals once every wanted event has fired for the navigated loader.
// Events can arrive before the loader is known; those are kept per loader
// and replayed when Expect is called. Nothing is ever dropped.
type LifecycleWaiter struct {
	mu       sync.Mutex
	want     map[string]struct{}
	early    map[loaderKey]map[string]struct{}
	target   loaderKey
	expected bool
	pending  map[string]struct{}
	done     chan struct{}
	closed   bool
}

func NewLifecycleWaiter(names []string) *LifecycleWaiter {
	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[name] = struct{}{}
	}
	return &LifecycleWaiter{
		want:  want,
		early: make(map[loaderKey]map[string]struct{}),
		done:  make(chan struct{}),
	}
}

// Observe records one lifecycle event. Safe to call from the CDP listener.
func (w *LifecycleWaiter) Observe(frameID cdp.FrameID, loaderID cdp.LoaderID, name string) {
	if _, ok := w.want[name]; !ok {
		return
	}
	key := loaderKey{frame: frameID, loader: loaderID}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expected {
		if key == w.target {
			delete(w.pending, name)
			w.closeIfComplete()
		}
		return
	}
	names, ok := w.early[key]
	if !ok {
		names = make(map[string]struct{}, len(w.want))
		w.early[key] = names
	}
	names[name] = struct{}{}
}

// Expect fixes the loader to wait on. Events already seen for it count.
func (w *LifecycleWaiter) Expect(frameID cdp.FrameID, loaderID cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.expected {
		return
	}
	w.expected = true
	w.target = loaderKey{frame: frameID, loader: loaderID}
	w.pending = make(map[string]struct{}, len(w.want))
	for name := range w.want {
		w.pending[name] = struct{}{}
	}
	for name := range w.early[w.target] {
		delete(w.pending, name)
	}
	w.early = nil
	w.closeIfComplete()
}

// Done is closed once every wanted event fired for the expected loader.
func (w *LifecycleWaiter) Done() <-chan struct{} {
	return w.done
}

func (w *LifecycleWaiter) closeIfComplete() {
	if !w.closed && len(w.pending) == 0 {
		w.closed = true
		close(w.done)
	}
}
