package render

import (
	"context"
	"time"
)

// autoScrollScript scrolls the document in steps until the bottom stops
// moving, then resolves.
const autoScrollScript = `new Promise((resolve) => {
	const step = Math.max(200, Math.floor(window.innerHeight / 2));
	let last = -1;
	let still = 0;
	const timer = setInterval(() => {
		window.scrollBy(0, step);
		const bottom = Math.ceil(window.scrollY + window.innerHeight);
		const height = document.scrollingElement ? document.scrollingElement.scrollHeight : document.body.scrollHeight;
		if (bottom >= height || bottom === last) {
			still++;
		} else {
			still = 0;
		}
		last = bottom;
		if (still >= 3) {
			clearInterval(timer);
			resolve(true);
		}
	}, 250);
})`

// AutoScroll scrolls page to the bottom to trigger lazy loading. The scroll
// routine races against ceiling; reaching the ceiling returns a
// recoverable *RenderError and leaves the page as loaded so far.
func AutoScroll(ctx context.Context, page Page, ceiling time.Duration) error {
	scrollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var finished bool
		done <- page.Evaluate(scrollCtx, autoScrollScript, &finished)
	}()

	var timeout <-chan time.Time
	if ceiling > 0 {
		timer := time.NewTimer(ceiling)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseEvaluateFailure}
		}
		return nil
	case <-timeout:
		return &RenderError{
			Message:   "scrolling still running after " + ceiling.String(),
			Retryable: true,
			Cause:     ErrCauseScrollCeiling,
		}
	case <-ctx.Done():
		return &RenderError{Message: ctx.Err().Error(), Retryable: true, Cause: ErrCauseCancelled}
	}
}
