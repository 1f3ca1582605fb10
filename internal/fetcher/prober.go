package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
)

/*
Responsibilities

- Decide, before a tab is touched, how a target is archived
- Issue one HEAD request per target with a bounded timeout
- Follow redirects with the client's default policy

Probe Semantics

- status >= 400: skip
- no Content-Type: render
- HTML or XHTML media type: render
- anything else: capture directly through the relay
- probe failure: render, since the content type could not be ruled out

The prober never reads bodies and never retries.
*/
type Prober struct {
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
	metadataSink metadata.MetadataSink
}

// NewProber builds a prober. A nil client uses a fresh http.Client.
func NewProber(
	httpClient *http.Client,
	userAgent string,
	timeout time.Duration,
	metadataSink metadata.MetadataSink,
) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &Prober{
		httpClient:   httpClient,
		userAgent:    userAgent,
		timeout:      timeout,
		metadataSink: metadataSink,
	}
}

func (p *Prober) Probe(ctx context.Context, target frontier.CrawlTarget) ProbeResult {
	start := time.Now()
	result := p.probe(ctx, target)

	p.metadataSink.RecordProbe(
		target.String(),
		result.Decision.String(),
		result.StatusCode,
		result.ContentType,
		time.Since(start),
	)
	if result.Err != nil {
		if fetchErr, ok := result.Err.(*FetchError); ok {
			p.metadataSink.RecordError(
				time.Now(),
				"fetcher",
				"Prober.Probe",
				mapFetchErrorToMetadataCause(fetchErr),
				fetchErr.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, target.String()),
					metadata.NewAttr(metadata.AttrDecision, result.Decision.String()),
				},
			)
		}
	}
	return result
}

func (p *Prober) probe(ctx context.Context, target frontier.CrawlTarget) ProbeResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return ProbeResult{
			Decision: DecisionRender,
			Err:      &FetchError{Message: err.Error(), Cause: ErrCauseRequestInvalid},
		}
	}
	for key, value := range requestHeaders(p.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ProbeResult{Decision: DecisionRender, Err: classifyTransportError(err)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	result := ProbeResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	switch {
	case resp.StatusCode >= 400:
		result.Decision = DecisionSkip
	case result.ContentType == "":
		result.Decision = DecisionRender
	case isHTMLContent(result.ContentType):
		result.Decision = DecisionRender
	default:
		result.Decision = DecisionCaptureDirect
	}
	return result
}

func requestHeaders(userAgent string) map[string]string {
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return headers
}
