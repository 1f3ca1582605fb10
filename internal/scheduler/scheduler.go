package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/extractor"
	"github.com/rohmanhakim/capture-crawler/internal/fetcher"
	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/internal/render"
	"github.com/rohmanhakim/capture-crawler/internal/scope"
	"github.com/rohmanhakim/capture-crawler/internal/storage"
	"github.com/rohmanhakim/capture-crawler/pkg/limiter"
	"github.com/rohmanhakim/capture-crawler/pkg/urlutil"
	"golang.org/x/sync/errgroup"
)

/*
 Controller is the sole control-plane authority of the crawl.

 Admission guarantees:
 - Only the controller feeds the frontier: the seed at start, then one
   batch of filtered links per rendered page.
 - Every candidate passes the scope filter before it is offered.
 - Dedup and the page limit are enforced inside the frontier, atomically.

 Metadata emission is observational only and MUST NOT influence
 scheduling or crawl termination.

 Controller Responsibilities:
 - Coordinate the crawl lifecycle: initializing, seeding, running,
   draining, terminated
 - Launch and tear down the rendering engine
 - Run the worker pool until the frontier reports idle
 - Aggregate crawl statistics
 - The sole authority on:
	- continue
	- abort

 Per-page failures never abort a crawl. Only startup failures are returned
 from Run.
*/

// EngineLauncher starts the rendering engine for one crawl.
type EngineLauncher func(ctx context.Context) (render.Engine, error)

// ControllerDeps are the collaborators of a Controller. Nil fields get
// defaults derived from the configuration, except LaunchEngine which is
// required.
type ControllerDeps struct {
	LaunchEngine EngineLauncher
	Prober       fetcher.AdmissionProber
	Relay        fetcher.DirectCapturer
	MetadataSink metadata.MetadataSink
	Finalizer    metadata.CrawlFinalizer
	Stats        *storage.StatsWriter
	Limiter      *limiter.HostLimiter
	// HTTPClient is used for the seed check and for default prober and relay.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Controller struct {
	cfg          config.Config
	launchEngine EngineLauncher
	prober       fetcher.AdmissionProber
	relay        fetcher.DirectCapturer
	extractor    extractor.LinkExtractor
	metadataSink metadata.MetadataSink
	finalizer    metadata.CrawlFinalizer
	stats        *storage.StatsWriter
	limiter      *limiter.HostLimiter
	httpClient   *http.Client
	logger       *slog.Logger

	crawlID string
	state   atomic.Int32
	counts  *pageCounts
}

func NewController(cfg config.Config, deps ControllerDeps) *Controller {
	sink := deps.MetadataSink
	if sink == nil {
		sink = &metadata.NoopSink{}
	}
	finalizer := deps.Finalizer
	if finalizer == nil {
		finalizer = &metadata.NoopSink{}
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	prober := deps.Prober
	if prober == nil {
		prober = fetcher.NewProber(httpClient, cfg.UserAgent(), cfg.ProbeTimeout(), sink)
	}
	relay := deps.Relay
	if relay == nil {
		relay = fetcher.NewCaptureRelay(httpClient, cfg.CaptureHost(), cfg.CapturePort(), cfg.UserAgent(), cfg.ProbeTimeout(), sink)
	}
	hostLimiter := deps.Limiter
	if hostLimiter == nil {
		hostLimiter = limiter.NewHostLimiter(cfg.RateLimit(), cfg.RateBurst())
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	crawlID := uuid.NewString()
	c := &Controller{
		cfg:          cfg,
		launchEngine: deps.LaunchEngine,
		prober:       prober,
		relay:        relay,
		extractor:    extractor.NewLinkExtractor(sink),
		metadataSink: sink,
		finalizer:    finalizer,
		stats:        deps.Stats,
		limiter:      hostLimiter,
		httpClient:   httpClient,
		logger:       logger.With(slog.String(string(metadata.AttrCrawlID), crawlID)),
		crawlID:      crawlID,
		counts:       newPageCounts(),
	}
	c.state.Store(int32(StateInitializing))
	return c
}

func (c *Controller) CrawlID() string {
	return c.crawlID
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) transition(next State) {
	prev := State(c.state.Swap(int32(next)))
	c.logger.Info("crawl state",
		slog.String(string(metadata.AttrState), next.String()),
		slog.String("from", prev.String()),
	)
}

// Run executes one crawl. Cancelling ctx interrupts the crawl: the frontier
// is closed, pages in progress finish and the result is marked
// Interrupted.
func (c *Controller) Run(ctx context.Context) (CrawlResult, error) {
	start := time.Now()
	result := CrawlResult{CrawlID: c.crawlID}
	configured := c.cfg.SeedURL()

	// Initializing
	c.logger.Info("crawl starting",
		slog.String("seed", configured.String()),
		slog.Int("workers", c.cfg.Workers()),
		slog.Int("limit", c.cfg.Limit()),
		slog.String("wait_until", c.cfg.WaitCondition().String()),
	)
	seed, err := urlutil.NormalizeURL(configured)
	if err != nil {
		return c.abort(result, start, &ControllerError{Message: err.Error(), Cause: ErrCauseInvalidSeed, Err: err})
	}
	filter := scope.NewFilter(scope.DerivePrefix(seed, c.cfg.ScopePrefix(), c.cfg.ScopeMode()), c.cfg.Exclusions())

	if !c.cfg.SkipSeedCheck() {
		resolved, ctrlErr := c.resolveSeed(ctx, seed, filter)
		if ctrlErr != nil {
			return c.abort(result, start, ctrlErr)
		}
		if resolved.String() != seed.String() {
			c.logger.Info("seed redirected",
				slog.String("from", seed.String()),
				slog.String("to", resolved.String()),
			)
			seed = resolved
			filter = scope.NewFilter(scope.DerivePrefix(seed, c.cfg.ScopePrefix(), c.cfg.ScopeMode()), c.cfg.Exclusions())
		}
	}
	result.Seed = seed.String()
	result.Scope = filter.Prefix()
	c.logger.Info("crawl scope", slog.String("scope", result.Scope))

	if c.launchEngine == nil {
		return c.abort(result, start, &ControllerError{Message: "no rendering engine configured", Cause: ErrCauseEngineFailure})
	}
	engine, err := c.launchEngine(ctx)
	if err != nil {
		return c.abort(result, start, &ControllerError{Message: err.Error(), Cause: ErrCauseEngineFailure, Err: err})
	}

	// Seeding
	c.transition(StateSeeding)
	fr := frontier.NewFrontier(c.cfg.Limit())
	fr.Seed(frontier.NewCrawlTarget(seed))

	// Running
	c.transition(StateRunning)
	stopOnCancel := context.AfterFunc(ctx, fr.Close)
	runErr := c.runWorkers(ctx, engine, fr, filter)
	stopOnCancel()

	interrupted := ctx.Err() != nil

	// Draining
	c.transition(StateDraining)
	if !interrupted && runErr == nil {
		c.settle(ctx)
	}

	// Terminated
	c.transition(StateTerminated)
	if err := engine.Close(); err != nil {
		c.logger.Warn("closing rendering engine", slog.String("error", err.Error()))
	}

	snapshot := fr.Snapshot()
	result.Dispatched = snapshot.Dispatched
	result.LimitHit = snapshot.LimitHit
	result.Rendered = c.counts.get(metadata.OutcomeRendered)
	result.Partial = c.counts.get(metadata.OutcomePartial)
	result.CapturedDirect = c.counts.get(metadata.OutcomeCapturedDirect)
	result.Skipped = c.counts.get(metadata.OutcomeSkipped)
	result.Failed = c.counts.get(metadata.OutcomeFailed)
	result.NavigationFailures = c.counts.navFailures()
	result.Interrupted = interrupted
	result.Duration = time.Since(start)

	c.writeProgress(snapshot)
	c.finalizer.RecordFinalCrawlStats(metadata.CrawlStats{
		CrawlID:        result.CrawlID,
		Seed:           result.Seed,
		Scope:          result.Scope,
		Dispatched:     result.Dispatched,
		Rendered:       result.Rendered,
		Partial:        result.Partial,
		CapturedDirect: result.CapturedDirect,
		Skipped:        result.Skipped,
		Failed:         result.Failed,
		LimitHit:       result.LimitHit,
		Interrupted:    result.Interrupted,
		Duration:       result.Duration,
	})

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (c *Controller) abort(result CrawlResult, start time.Time, err *ControllerError) (CrawlResult, error) {
	seed := c.cfg.SeedURL()
	c.metadataSink.RecordError(
		time.Now(),
		"scheduler",
		"Controller.Run",
		mapControllerErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, seed.String()),
			metadata.NewAttr(metadata.AttrCrawlID, c.crawlID),
		},
	)
	c.transition(StateTerminated)
	result.Duration = time.Since(start)
	return result, err
}

func (c *Controller) runWorkers(ctx context.Context, engine render.Engine, fr *frontier.Frontier, filter scope.Filter) error {
	g, gctx := errgroup.WithContext(ctx)
	stopOnFailure := context.AfterFunc(gctx, fr.Close)
	defer stopOnFailure()

	for i := 0; i < c.cfg.Workers(); i++ {
		worker := i + 1
		g.Go(func() error {
			return c.runWorker(gctx, worker, engine, fr, filter)
		})
	}

	err := g.Wait()
	var ctrlErr *ControllerError
	if errors.As(err, &ctrlErr) {
		return ctrlErr
	}
	return err
}

// settle gives trailing requests of the last page time to reach the
// capture proxy before the crawl is declared done.
func (c *Controller) settle(ctx context.Context) {
	delay := c.cfg.SettleDelay()
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Controller) writeProgress(snapshot frontier.Snapshot) {
	if !c.stats.Enabled() {
		return
	}
	progress := storage.Progress{
		Crawled: snapshot.Completed,
		Total:   snapshot.Dispatched,
		Pending: snapshot.Pending + snapshot.InFlight,
		Failed:  c.counts.get(metadata.OutcomeFailed) + c.counts.get(metadata.OutcomeSkipped),
		Limit: storage.ProgressLimit{
			Max: snapshot.Limit,
			Hit: snapshot.LimitHit,
		},
	}
	if err := c.stats.Write(progress); err != nil {
		c.logger.Warn("writing progress", slog.String("error", err.Error()))
	}
}
