package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/fetcher"
	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/internal/render"
	"github.com/rohmanhakim/capture-crawler/internal/scope"
)

// runWorker owns one tab for its whole life and processes one target at a
// time until the frontier runs dry or ctx ends.
func (c *Controller) runWorker(
	ctx context.Context,
	worker int,
	engine render.Engine,
	fr *frontier.Frontier,
	filter scope.Filter,
) error {
	page, err := engine.NewPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &ControllerError{Message: err.Error(), Cause: ErrCauseEngineFailure, Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Debug("closing tab", slog.Int(string(metadata.AttrWorker), worker), slog.String("error", err.Error()))
		}
	}()

	// Pages already handed out finish even when the crawl is interrupted;
	// every step below carries its own timeout. The politeness wait has no
	// timeout of its own, so it stays on ctx.
	pageCtx := context.WithoutCancel(ctx)

	for {
		target, ok := fr.Next(ctx)
		if !ok {
			return nil
		}
		c.metadataSink.RecordInFlight(fr.Snapshot().InFlight)

		event := c.processTarget(ctx, pageCtx, worker, page, fr, filter, target)
		c.metadataSink.RecordPage(event)

		fr.Done()
		snapshot := fr.Snapshot()
		c.metadataSink.RecordInFlight(snapshot.InFlight)
		c.writeProgress(snapshot)
	}
}

// processTarget runs the per-page flow: politeness wait, admission check,
// then either a direct capture or navigate, scroll, snapshot and link
// yield. Only the politeness wait observes crawlCtx; the rest runs on ctx.
// It never fails the crawl.
func (c *Controller) processTarget(
	crawlCtx context.Context,
	ctx context.Context,
	worker int,
	page render.Page,
	fr *frontier.Frontier,
	filter scope.Filter,
	target frontier.CrawlTarget,
) metadata.PageEvent {
	start := time.Now()
	event := metadata.PageEvent{URL: target.String(), Worker: worker}
	navigationFailed := false
	defer func() {
		event.Duration = time.Since(start)
		event.ObservedAt = time.Now()
		c.counts.add(event.Outcome, navigationFailed)
	}()

	logger := c.logger.With(
		slog.String(string(metadata.AttrURL), target.String()),
		slog.Int(string(metadata.AttrWorker), worker),
	)

	if c.limiter.Enabled() {
		if err := c.limiter.Wait(crawlCtx, target.Host()); err != nil {
			logger.Warn("rate limiter wait aborted", slog.String("error", err.Error()))
			event.Outcome = metadata.OutcomeFailed
			return event
		}
	}

	probe := c.prober.Probe(ctx, target)
	event.StatusCode = probe.StatusCode
	event.ContentType = probe.ContentType
	if probe.Err != nil {
		logger.Debug("probe failed, rendering anyway", slog.String("error", probe.Err.Error()))
	}

	switch probe.Decision {
	case fetcher.DecisionSkip:
		logger.Info("skipping, invalid status", slog.Int(string(metadata.AttrHTTPStatus), probe.StatusCode))
		event.Outcome = metadata.OutcomeSkipped
		return event
	case fetcher.DecisionCaptureDirect:
		logger.Info("direct capture", slog.String(string(metadata.AttrContentType), probe.ContentType))
		if err := c.relay.Capture(ctx, target); err != nil {
			logger.Warn("direct capture failed", slog.String("error", err.Error()))
		}
		event.Outcome = metadata.OutcomeCapturedDirect
		return event
	}

	outcome := metadata.OutcomeRendered
	if err := page.Navigate(ctx, target.String(), c.cfg.WaitCondition(), c.cfg.PageTimeout()); err != nil {
		logger.Warn("load incomplete, continuing with what loaded", slog.String("error", err.Error()))
		navigationFailed = true
		outcome = metadata.OutcomePartial
	}

	if c.cfg.Scroll() {
		if err := render.AutoScroll(ctx, page, c.cfg.ScrollCeiling()); err != nil {
			logger.Warn("auto scroll incomplete", slog.String("error", err.Error()))
		}
	}

	snapCtx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout())
	baseURI, html, err := render.Snapshot(snapCtx, page)
	cancel()
	if err != nil {
		logger.Warn("link extraction failed", slog.String("error", err.Error()))
		event.Outcome = metadata.OutcomeFailed
		return event
	}

	links, exErr := c.extractor.Extract(target.URL(), baseURI, html)
	if exErr != nil {
		logger.Warn("link extraction failed", slog.String("error", exErr.Error()))
		event.Outcome = metadata.OutcomeFailed
		return event
	}

	batch := make([]frontier.CrawlTarget, 0, len(links.Hrefs))
	rejected := make(map[string]int)
	base := links.Base
	for _, href := range links.Hrefs {
		candidate, reason := filter.Classify(href, &base)
		if reason != scope.ReasonAccepted {
			rejected[string(reason)]++
			continue
		}
		batch = append(batch, candidate)
	}

	offered := fr.Offer(batch)
	c.metadataSink.RecordLinks(offered.Accepted, offered.Duplicates, offered.Dropped, rejected)
	if offered.Dropped > 0 && offered.LimitHit {
		logger.Info("page limit reached, discarding remaining links", slog.Int("dropped", offered.Dropped))
	}

	event.LinksFound = len(links.Hrefs)
	event.LinksAccepted = offered.Accepted
	event.Outcome = outcome
	return event
}
