package metadata

import (
	"time"
)

// PageOutcome is the terminal classification of one dispatched target.
type PageOutcome string

const (
	// OutcomeRendered: navigated and links extracted
	OutcomeRendered PageOutcome = "rendered"
	// OutcomePartial: navigation failed or timed out, links extracted from whatever loaded
	OutcomePartial PageOutcome = "partial"
	// OutcomeCapturedDirect: non-HTML resource fetched through the capture relay
	OutcomeCapturedDirect PageOutcome = "captured_direct"
	// OutcomeSkipped: the admission probe reported an error status
	OutcomeSkipped PageOutcome = "skipped"
	// OutcomeFailed: the page could not be processed at all
	OutcomeFailed PageOutcome = "failed"
)

// PageEvent describes what happened to one dispatched target.
type PageEvent struct {
	URL           string
	Outcome       PageOutcome
	StatusCode    int
	ContentType   string
	LinksFound    int
	LinksAccepted int
	Duration      time.Duration
	ObservedAt    time.Time
	Worker        int
}

/*
CrawlStats
  - Represents a terminal, derived summary of a completed crawl
  - Contains only aggregate counts and durations
  - Is computed by the controller after crawl termination
  - Is recorded exactly once
  - Must not influence scheduling or crawl termination
*/
type CrawlStats struct {
	CrawlID        string
	Seed           string
	Scope          string
	Dispatched     int
	Rendered       int
	Partial        int
	CapturedDirect int
	Skipped        int
	Failed         int
	LimitHit       bool
	Interrupted    bool
	Duration       time.Duration
}

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - It must never be used to derive continuation or abort decisions.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown
  - The failure does not map cleanly to any known category.

# CauseNetworkFailure
  - Transport failures: DNS, connection reset, probe timeout.

# CauseRenderFailure
  - The browser could not navigate, scroll or evaluate within its deadline.

# CauseContentInvalid
  - The rendered document could not be parsed for links.

# CauseStorageFailure
  - Stats file or ledger could not be written.

# CausePackagingFailure
  - The packaging tool failed or had nothing to package.

# CauseInvariantViolation
  - A system-level invariant was violated.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CauseRenderFailure
	CauseContentInvalid
	CauseStorageFailure
	CausePackagingFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseRenderFailure:
		return "render_failure"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CausePackagingFailure:
		return "packaging_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL         AttributeKey = "url"
	AttrHost        AttributeKey = "host"
	AttrHTTPStatus  AttributeKey = "http_status"
	AttrContentType AttributeKey = "content_type"
	AttrDecision    AttributeKey = "decision"
	AttrWorker      AttributeKey = "worker"
	AttrCrawlID     AttributeKey = "crawl_id"
	AttrWritePath   AttributeKey = "write_path"
	AttrState       AttributeKey = "state"
)
