package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rohmanhakim/capture-crawler/internal/config"
)

const defaultShutdownGrace = 5 * time.Second

// ChromeEngine drives a Chrome process through the DevTools protocol.
type ChromeEngine struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	grace         time.Duration
}

// NewChromeEngine launches the browser. The browser outlives cancellation
// of ctx and is only torn down by Close.
func NewChromeEngine(ctx context.Context, opts Options) (*ChromeEngine, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.IgnoreCertErrors,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("no-xshm", true),
	)
	if opts.Headful {
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser and its first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &RenderError{Message: err.Error(), Cause: ErrCauseLaunchFailure}
	}

	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	return &ChromeEngine{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		grace:         grace,
	}, nil
}

func (e *ChromeEngine) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseCancelled}
	}
	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, &RenderError{Message: err.Error(), Cause: ErrCauseTabFailure}
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down, killing the process if it has not exited
// within the grace period.
func (e *ChromeEngine) Close() error {
	var proc *os.Process
	if c := chromedp.FromContext(e.browserCtx); c != nil && c.Browser != nil {
		proc = c.Browser.Process()
	}

	done := make(chan struct{})
	go func() {
		_ = chromedp.Cancel(e.browserCtx)
		e.browserCancel()
		e.allocCancel()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(e.grace):
		if proc != nil {
			if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("kill browser: %w", err)
			}
		}
		return nil
	}
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// scoped derives a context that carries the tab and ends when ctx ends or
// timeout elapses.
func (p *chromePage) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		c      context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		c, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		c, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string, wait config.WaitCondition, timeout time.Duration) error {
	navCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()

	waiter := NewLifecycleWaiter(LifecycleNames(wait))
	chromedp.ListenTarget(navCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			waiter.Observe(e.FrameID, e.LoaderID, e.Name)
		}
	})

	var (
		frameID  cdp.FrameID
		loaderID cdp.LoaderID
	)
	err := chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var errorText string
		var navErr error
		frameID, loaderID, errorText, _, navErr = page.Navigate(url).Do(ctx)
		if navErr != nil {
			return navErr
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		return nil
	}))
	if err != nil {
		return p.navigationError(ctx, navCtx, err)
	}
	// Same-document navigation has no new loader to wait for.
	if loaderID == "" {
		return nil
	}

	waiter.Expect(frameID, loaderID)
	select {
	case <-waiter.Done():
		return nil
	case <-navCtx.Done():
		return p.navigationError(ctx, navCtx, navCtx.Err())
	}
}

func (p *chromePage) navigationError(callerCtx, navCtx context.Context, err error) *RenderError {
	switch {
	case callerCtx.Err() != nil:
		return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseCancelled}
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationTimeout}
	default:
		return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailure}
	}
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	evalCtx, cancel := p.scoped(ctx, 0)
	defer cancel()

	err := chromedp.Run(evalCtx, chromedp.Evaluate(expression, out, awaitPromise))
	if err != nil {
		if ctx.Err() != nil {
			return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseCancelled}
		}
		return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseEvaluateFailure}
	}
	return nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
