package extractor

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

/*
Responsibilities
- Parse the rendered DOM serialization of one page
- Collect the href of every anchor, in document order
- Determine the base URL hrefs are relative to

Extraction never filters by scope and never normalizes; that belongs to
the scope filter. Duplicate hrefs within one page are collapsed.
*/

type Links struct {
	// Base is the URL relative hrefs resolve against.
	Base url.URL
	// Hrefs are raw attribute values, trimmed, first occurrence order.
	Hrefs []string
}

type LinkExtractor struct {
	metadataSink metadata.MetadataSink
}

func NewLinkExtractor(metadataSink metadata.MetadataSink) LinkExtractor {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return LinkExtractor{metadataSink: metadataSink}
}

// Extract parses html rendered at pageURL. baseURI is the document's
// baseURI as reported by the browser; when empty or unusable the
// document's own <base href> (or pageURL) is used instead.
func (l LinkExtractor) Extract(
	pageURL url.URL,
	baseURI string,
	html string,
) (Links, failure.ClassifiedError) {
	links, err := ExtractLinks(pageURL, baseURI, html)
	if err != nil {
		l.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"LinkExtractor.Extract",
			mapExtractionErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pageURL.String()),
			},
		)
		return Links{}, err
	}
	return links, nil
}

func ExtractLinks(pageURL url.URL, baseURI string, html string) (Links, *ExtractionError) {
	if strings.TrimSpace(html) == "" {
		return Links{}, &ExtractionError{
			Message:   "no markup returned for " + pageURL.String(),
			Retryable: true,
			Cause:     ErrCauseEmptyDocument,
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Links{}, &ExtractionError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseParseFailure,
		}
	}

	links := Links{Base: resolveBase(pageURL, baseURI, doc)}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links.Hrefs = append(links.Hrefs, href)
	})
	return links, nil
}

func resolveBase(pageURL url.URL, baseURI string, doc *goquery.Document) url.URL {
	if baseURI != "" {
		if u, err := url.Parse(baseURI); err == nil && u.IsAbs() {
			return *u
		}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return *pageURL.ResolveReference(ref)
		}
	}
	return pageURL
}
