package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/frontier"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

const captureRecordPath = "/capture/record/id_/"

/*
CaptureRelay records non-HTML resources by requesting them through the
capture proxy's record endpoint. The response body is drained so the
proxy sees a complete transfer; the content itself is discarded.
*/
type CaptureRelay struct {
	httpClient   *http.Client
	prefix       string
	userAgent    string
	timeout      time.Duration
	metadataSink metadata.MetadataSink
}

func NewCaptureRelay(
	httpClient *http.Client,
	host string,
	port int,
	userAgent string,
	timeout time.Duration,
	metadataSink metadata.MetadataSink,
) *CaptureRelay {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &CaptureRelay{
		httpClient:   httpClient,
		prefix:       CapturePrefix(host, port),
		userAgent:    userAgent,
		timeout:      timeout,
		metadataSink: metadataSink,
	}
}

// CapturePrefix returns the record endpoint the target URL is appended to.
func CapturePrefix(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + captureRecordPath
}

// CaptureURL returns the relay URL that records target.
func (c *CaptureRelay) CaptureURL(target frontier.CrawlTarget) string {
	return c.prefix + target.String()
}

func (c *CaptureRelay) Capture(ctx context.Context, target frontier.CrawlTarget) failure.ClassifiedError {
	err := c.capture(ctx, target)
	if err != nil {
		c.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"CaptureRelay.Capture",
			mapFetchErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target.String())},
		)
		return err
	}
	return nil
}

func (c *CaptureRelay) capture(ctx context.Context, target frontier.CrawlTarget) *FetchError {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CaptureURL(target), nil)
	if err != nil {
		return &FetchError{Message: err.Error(), Cause: ErrCauseRequestInvalid}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		if isTimeout(err) {
			return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout}
		}
		return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadBodyError}
	}
	if resp.StatusCode >= 500 {
		return &FetchError{
			Message:   fmt.Sprintf("relay answered %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseCaptureStatus,
		}
	}
	return nil
}
