package frontier

import "net/url"

// CrawlTarget is a normalized absolute http(s) URL awaiting, or having
// received, a worker visit. It is immutable.
//
// Invariants:
// - The URL was normalized before construction (fragment stripped, scheme checked)
// - The string form is the Frontier's deduplication key
type CrawlTarget struct {
	url url.URL
	key string
}

// NewCrawlTarget wraps an already normalized URL.
func NewCrawlTarget(normalized url.URL) CrawlTarget {
	return CrawlTarget{
		url: normalized,
		key: normalized.String(),
	}
}

func (c CrawlTarget) URL() url.URL {
	return c.url
}

func (c CrawlTarget) String() string {
	return c.key
}

func (c CrawlTarget) Host() string {
	return c.url.Hostname()
}

func (c CrawlTarget) IsZero() bool {
	return c.key == ""
}
