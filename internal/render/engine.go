package render

import (
	"context"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/config"
)

/*
Responsibilities
- Own the browser process for the duration of a crawl
- Hand out one tab per worker
- Navigate a tab and wait for the configured lifecycle milestones
- Evaluate scripts in the loaded document

A Page is owned by exactly one worker and is never shared. Every call on
a Page is bounded by the context it receives.
*/

type Engine interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type Page interface {
	// Navigate loads url and returns once every event of wait has fired for
	// the new document, or timeout elapses.
	Navigate(ctx context.Context, url string, wait config.WaitCondition, timeout time.Duration) error
	// Evaluate runs expression, awaiting a returned promise, and decodes
	// the JSON result into out. out may be nil.
	Evaluate(ctx context.Context, expression string, out any) error
	Close() error
}

type Options struct {
	// ProxyServer is passed to the browser as --proxy-server.
	ProxyServer string
	UserAgent   string
	// ExecPath overrides browser discovery.
	ExecPath string
	Headful  bool
	// ShutdownGrace bounds how long Close waits before killing the
	// browser process.
	ShutdownGrace time.Duration
}
