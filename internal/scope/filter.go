package scope

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/pkg/urlutil"
)

/*
Responsibilities
- Turn a raw href into a CrawlTarget or reject it
- Apply, in order: parse and normalize, scheme check, scope prefix, exclusions
- Exclusion always wins over scope inclusion

The filter is pure and safe for concurrent use. Deduplication is not done
here: the Frontier performs the atomic seen check when the accepted batch
is offered.
*/

// Reason explains why a candidate was rejected.
type Reason string

const (
	ReasonAccepted   Reason = ""
	ReasonInvalid    Reason = "invalid"
	ReasonOutOfScope Reason = "out_of_scope"
	ReasonExcluded   Reason = "excluded"
)

type Filter struct {
	prefix     string
	exclusions []*regexp.Regexp
}

// NewFilter builds a filter for a resolved scope prefix. An empty prefix
// admits every http(s) URL that no exclusion matches.
func NewFilter(prefix string, exclusions []*regexp.Regexp) Filter {
	return Filter{
		prefix:     prefix,
		exclusions: append([]*regexp.Regexp(nil), exclusions...),
	}
}

func (f Filter) Prefix() string {
	return f.prefix
}

// Evaluate resolves rawHref against base (nil for absolute-only input),
// normalizes it and checks scope and exclusions.
func (f Filter) Evaluate(rawHref string, base *url.URL) (frontier.CrawlTarget, bool) {
	target, reason := f.Classify(rawHref, base)
	return target, reason == ReasonAccepted
}

// Classify is Evaluate with the rejection reason exposed.
func (f Filter) Classify(rawHref string, base *url.URL) (frontier.CrawlTarget, Reason) {
	normalized, err := urlutil.Resolve(base, rawHref)
	if err != nil {
		return frontier.CrawlTarget{}, ReasonInvalid
	}
	target := frontier.NewCrawlTarget(normalized)

	if f.prefix != "" && !strings.HasPrefix(target.String(), f.prefix) {
		return frontier.CrawlTarget{}, ReasonOutOfScope
	}
	for _, exclusion := range f.exclusions {
		if exclusion.MatchString(target.String()) {
			return frontier.CrawlTarget{}, ReasonExcluded
		}
	}
	return target, ReasonAccepted
}

// Contains reports whether a normalized URL string falls inside the scope prefix.
func (f Filter) Contains(normalized string) bool {
	return f.prefix == "" || strings.HasPrefix(normalized, f.prefix)
}

// DerivePrefix returns the scope prefix for a crawl: the configured override
// when set, otherwise a prefix computed from the normalized seed.
func DerivePrefix(seed url.URL, override string, mode config.ScopeMode) string {
	if override != "" {
		return override
	}
	if mode == config.ScopeModeHost {
		return urlutil.Origin(seed)
	}
	return urlutil.ParentPrefix(seed)
}
