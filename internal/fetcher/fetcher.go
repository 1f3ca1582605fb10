package fetcher

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

// Decision is what a worker does with a target after probing it.
type Decision int

const (
	// DecisionRender loads the target in the browser tab.
	DecisionRender Decision = iota
	// DecisionCaptureDirect fetches the target through the capture relay
	// without rendering.
	DecisionCaptureDirect
	// DecisionSkip drops the target.
	DecisionSkip
)

func (d Decision) String() string {
	switch d {
	case DecisionRender:
		return "render"
	case DecisionCaptureDirect:
		return "capture"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

type ProbeResult struct {
	Decision    Decision
	StatusCode  int
	ContentType string
	// Err is set when the probe itself failed and the decision fell back
	// to DecisionRender.
	Err failure.ClassifiedError
}

type AdmissionProber interface {
	Probe(ctx context.Context, target frontier.CrawlTarget) ProbeResult
}

type DirectCapturer interface {
	Capture(ctx context.Context, target frontier.CrawlTarget) failure.ClassifiedError
}

var htmlMediaTypes = []string{
	"text/html",
	"application/xhtml",
	"application/xhtml+xml",
}

// mediaType returns the lowercased type/subtype part of a Content-Type
// header value.
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isHTMLContent(contentType string) bool {
	mt := mediaType(contentType)
	for _, t := range htmlMediaTypes {
		if mt == t {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
