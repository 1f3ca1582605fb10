package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rohmanhakim/capture-crawler/internal/scope"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
	"github.com/rohmanhakim/capture-crawler/pkg/retry"
	"github.com/rohmanhakim/capture-crawler/pkg/timeutil"
	"github.com/rohmanhakim/capture-crawler/pkg/urlutil"
	"golang.org/x/net/publicsuffix"
)

type seedCheckError struct {
	message string
}

func (e *seedCheckError) Error() string {
	return e.message
}

func (e *seedCheckError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *seedCheckError) IsRetryable() bool {
	return true
}

type seedResponse struct {
	finalURL   url.URL
	statusCode int
}

// resolveSeed follows redirects of the seed and decides whether the final
// URL may replace it. A redirect is accepted when it stays on the seed's
// registrable domain or lands inside the crawl scope.
func (c *Controller) resolveSeed(ctx context.Context, seed url.URL, filter scope.Filter) (url.URL, *ControllerError) {
	retryParam := retry.NewRetryParam(
		c.cfg.Jitter(),
		c.cfg.RandomSeed(),
		c.cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			c.cfg.BackoffInitialDuration(),
			c.cfg.BackoffMultiplier(),
			c.cfg.BackoffMaxDuration(),
		),
	)

	result := retry.Retry(ctx, retryParam, func(ctx context.Context) (seedResponse, failure.ClassifiedError) {
		return c.headSeed(ctx, seed)
	})
	if result.IsFailure() {
		return url.URL{}, &ControllerError{
			Message: fmt.Sprintf("failed to connect to %s after %d attempts: %v", seed.String(), result.Attempts(), result.Err()),
			Cause:   ErrCauseSeedUnreachable,
			Err:     result.Err(),
		}
	}

	resp := result.Value()
	if resp.statusCode >= 400 {
		c.logger.Warn("seed answered with an error status",
			slog.String("seed", seed.String()),
			slog.Int("http_status", resp.statusCode),
		)
	}

	final, err := urlutil.NormalizeURL(resp.finalURL)
	if err != nil || final.String() == seed.String() {
		return seed, nil
	}
	if sameRegistrableDomain(seed.Hostname(), final.Hostname()) || filter.Contains(final.String()) {
		return final, nil
	}
	return url.URL{}, &ControllerError{
		Message: fmt.Sprintf("%s redirects to out-of-scope %s, cancelling crawl", seed.String(), final.String()),
		Cause:   ErrCauseSeedOutOfDomain,
	}
}

func (c *Controller) headSeed(ctx context.Context, seed url.URL) (seedResponse, failure.ClassifiedError) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, seed.String(), nil)
	if err != nil {
		return seedResponse{}, &ControllerError{Message: err.Error(), Cause: ErrCauseInvalidSeed, Err: err}
	}
	if ua := c.cfg.UserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return seedResponse{}, &seedCheckError{message: err.Error()}
	}
	resp.Body.Close()

	return seedResponse{finalURL: *resp.Request.URL, statusCode: resp.StatusCode}, nil
}

// sameRegistrableDomain compares public suffix plus one label. Hosts without
// a registrable domain, such as IP addresses, only match themselves.
func sameRegistrableDomain(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	if net.ParseIP(a) != nil || net.ParseIP(b) != nil {
		return false
	}
	da, errA := publicsuffix.EffectiveTLDPlusOne(a)
	db, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}
