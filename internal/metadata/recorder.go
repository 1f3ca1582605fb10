package metadata

import (
	"context"
	"log/slog"
	"time"
)

/*
Metadata Collected
- Probe decisions with status and content type
- Page outcomes and durations
- Link admission counts
- Errors with canonical causes

Determinism guarantees:
 - Metadata does not affect control flow
 - Errors do not reorder the frontier

Metadata is write-only.
No component may read metadata to influence crawl decisions.
*/

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)
	RecordProbe(
		url string,
		decision string,
		statusCode int,
		contentType string,
		duration time.Duration,
	)
	RecordLinks(accepted int, duplicates int, dropped int, rejected map[string]int)
	RecordPage(event PageEvent)
	RecordInFlight(n int)
}

/*
CrawlFinalizer records the terminal summary of a crawl.

Contract:
  - MUST be called exactly once per crawl execution, after termination.
  - The provided CrawlStats MUST be derived from controller state.
*/
type CrawlFinalizer interface {
	RecordFinalCrawlStats(stats CrawlStats)
}

// PageStore persists page events outside the process, e.g. a ledger database.
type PageStore interface {
	SavePage(ctx context.Context, event PageEvent) error
}

/*
Recorder fans crawl events out to structured logs, Prometheus collectors
and an optional PageStore.
Ordering guarantees:
- Events from one worker are recorded in the order they happen.
- No global ordering across workers is guaranteed.
*/
type Recorder struct {
	logger  *slog.Logger
	metrics *Metrics
	store   PageStore
}

// NewRecorder creates a Recorder. metrics and store may be nil.
func NewRecorder(logger *slog.Logger, metrics *Metrics, store PageStore) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		logger:  logger,
		metrics: metrics,
		store:   store,
	}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	args := []any{
		slog.String("package", packageName),
		slog.String("action", action),
		slog.String("cause", cause.String()),
		slog.String("error", details),
		slog.Time("observed_at", observedAt),
	}
	args = append(args, toSlogArgs(attrs)...)
	r.logger.Warn("crawl error", args...)

	if r.metrics != nil {
		r.metrics.ErrorsCounter(packageName, cause).Inc()
	}
}

func (r *Recorder) RecordProbe(
	url string,
	decision string,
	statusCode int,
	contentType string,
	duration time.Duration,
) {
	r.logger.Debug("probe",
		slog.String(string(AttrURL), url),
		slog.String(string(AttrDecision), decision),
		slog.Int(string(AttrHTTPStatus), statusCode),
		slog.String(string(AttrContentType), contentType),
		slog.Duration("duration", duration),
	)
	if r.metrics != nil {
		r.metrics.ProbeCounter(decision).Inc()
	}
}

func (r *Recorder) RecordLinks(accepted int, duplicates int, dropped int, rejected map[string]int) {
	if r.metrics == nil {
		return
	}
	r.metrics.LinksCounter("accepted").Add(float64(accepted))
	r.metrics.LinksCounter("duplicate").Add(float64(duplicates))
	r.metrics.LinksCounter("limit").Add(float64(dropped))
	for reason, n := range rejected {
		r.metrics.LinksCounter(reason).Add(float64(n))
	}
}

func (r *Recorder) RecordPage(event PageEvent) {
	level := slog.LevelInfo
	if event.Outcome == OutcomeFailed || event.Outcome == OutcomePartial {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "page finished",
		slog.String(string(AttrURL), event.URL),
		slog.String("outcome", string(event.Outcome)),
		slog.Int(string(AttrHTTPStatus), event.StatusCode),
		slog.String(string(AttrContentType), event.ContentType),
		slog.Int("links_found", event.LinksFound),
		slog.Int("links_accepted", event.LinksAccepted),
		slog.Duration("duration", event.Duration),
		slog.Int(string(AttrWorker), event.Worker),
	)

	if r.metrics != nil {
		r.metrics.PagesCounter(event.Outcome).Inc()
		r.metrics.PageDuration().Observe(event.Duration.Seconds())
	}

	if r.store != nil {
		if err := r.store.SavePage(context.Background(), event); err != nil {
			r.RecordError(time.Now(), "metadata", "Recorder.RecordPage", CauseStorageFailure, err.Error(),
				[]Attribute{NewAttr(AttrURL, event.URL)})
		}
	}
}

func (r *Recorder) RecordInFlight(n int) {
	if r.metrics != nil {
		r.metrics.InFlight().Set(float64(n))
	}
}

func (r *Recorder) RecordFinalCrawlStats(stats CrawlStats) {
	r.logger.Info("crawl finished",
		slog.String(string(AttrCrawlID), stats.CrawlID),
		slog.String("seed", stats.Seed),
		slog.String("scope", stats.Scope),
		slog.Int("dispatched", stats.Dispatched),
		slog.Int("rendered", stats.Rendered),
		slog.Int("partial", stats.Partial),
		slog.Int("captured_direct", stats.CapturedDirect),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Bool("limit_hit", stats.LimitHit),
		slog.Bool("interrupted", stats.Interrupted),
		slog.Duration("duration", stats.Duration),
	)
}

func toSlogArgs(attrs []Attribute) []any {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, slog.String(string(a.Key), a.Value))
	}
	return args
}

// NoopSink implements MetadataSink and CrawlFinalizer but does nothing.
// Tests inject it where observability is irrelevant.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordProbe(url string, decision string, statusCode int, contentType string, duration time.Duration) {
}

func (n *NoopSink) RecordLinks(accepted int, duplicates int, dropped int, rejected map[string]int) {}

func (n *NoopSink) RecordPage(event PageEvent) {}

func (n *NoopSink) RecordInFlight(int) {}

func (n *NoopSink) RecordFinalCrawlStats(stats CrawlStats) {}
