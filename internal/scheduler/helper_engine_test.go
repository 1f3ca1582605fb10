package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/render"
	"github.com/rohmanhakim/capture-crawler/internal/scheduler"
)

// fakeEngine serves an in-memory site: URL -> HTML body.
type fakeEngine struct {
	mu        sync.Mutex
	site      map[string]string
	navErrs   map[string]error
	navigated []string
	onNav     func(url string)
	tabErr    error
	tabs      int
	closed    bool
}

func newFakeEngine(site map[string]string) *fakeEngine {
	return &fakeEngine{site: site, navErrs: make(map[string]error)}
}

func (e *fakeEngine) launcher() scheduler.EngineLauncher {
	return func(ctx context.Context) (render.Engine, error) {
		return e, nil
	}
}

func (e *fakeEngine) NewPage(ctx context.Context) (render.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tabErr != nil {
		return nil, e.tabErr
	}
	e.tabs++
	return &fakeTab{engine: e}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) Navigated() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.navigated...)
	sort.Strings(out)
	return out
}

func (e *fakeEngine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeTab struct {
	engine  *fakeEngine
	current string
}

func (t *fakeTab) Navigate(ctx context.Context, url string, wait config.WaitCondition, timeout time.Duration) error {
	t.engine.mu.Lock()
	t.engine.navigated = append(t.engine.navigated, url)
	navErr := t.engine.navErrs[url]
	hook := t.engine.onNav
	t.engine.mu.Unlock()

	t.current = url
	if hook != nil {
		hook(url)
	}
	return navErr
}

func (t *fakeTab) Evaluate(ctx context.Context, expression string, out any) error {
	switch v := out.(type) {
	case *bool:
		*v = true
		return nil
	case *[]string:
		t.engine.mu.Lock()
		html, ok := t.engine.site[t.current]
		t.engine.mu.Unlock()
		if !ok {
			html = "<html><body>not found</body></html>"
		}
		raw, _ := json.Marshal([]string{t.current, html})
		return json.Unmarshal(raw, v)
	default:
		return errors.New("unexpected evaluate target")
	}
}

func (t *fakeTab) Close() error { return nil }

// page renders an HTML document linking to hrefs.
func page(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}
