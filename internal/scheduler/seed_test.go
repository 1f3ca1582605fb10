package scheduler_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routedClient sends every request to srv regardless of the URL's host, so
// tests can use real-looking hostnames.
func routedClient(srv *httptest.Server) *http.Client {
	addr := srv.Listener.Addr().String()
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host + r.URL.Path {
		case "example.com/old":
			http.Redirect(w, r, "http://www.example.com/new/", http.StatusMovedPermanently)
		case "example.com/away":
			http.Redirect(w, r, "http://other.org/landing", http.StatusFound)
		case "example.com/mirror":
			http.Redirect(w, r, "http://mirror.org/docs/", http.StatusFound)
		case "example.com/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "text/html")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedCheckConfig(t *testing.T, seed string) *config.Config {
	t.Helper()
	return testConfig(t, seed).
		WithSkipSeedCheck(false).
		WithProbeTimeout(2*time.Second).
		WithBackoff(time.Millisecond, 2, 5*time.Millisecond).
		WithJitter(0)
}

func TestController_SeedRedirectOnSameDomainReplacesSeed(t *testing.T) {
	srv := newRedirectServer(t)
	engine := newFakeEngine(nil)

	c := scheduler.NewController(build(t, seedCheckConfig(t, "http://example.com/old")), scheduler.ControllerDeps{
		LaunchEngine: engine.launcher(),
		Prober:       newFakeProber(),
		HTTPClient:   routedClient(srv),
	})
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://www.example.com/new/", result.Seed)
	assert.Equal(t, "http://www.example.com/new/", result.Scope)
	assert.Equal(t, []string{"http://www.example.com/new/"}, engine.Navigated())
}

func TestController_SeedRedirectOutOfDomainIsFatal(t *testing.T) {
	srv := newRedirectServer(t)
	engine := newFakeEngine(nil)

	c := scheduler.NewController(build(t, seedCheckConfig(t, "http://example.com/away")), scheduler.ControllerDeps{
		LaunchEngine: engine.launcher(),
		Prober:       newFakeProber(),
		HTTPClient:   routedClient(srv),
	})
	_, err := c.Run(context.Background())

	var ctrlErr *scheduler.ControllerError
	require.ErrorAs(t, err, &ctrlErr)
	assert.Equal(t, scheduler.ErrCauseSeedOutOfDomain, ctrlErr.Cause)
	assert.Empty(t, engine.Navigated())
}

func TestController_SeedRedirectInsideExplicitScopeIsAccepted(t *testing.T) {
	srv := newRedirectServer(t)
	engine := newFakeEngine(nil)

	builder := seedCheckConfig(t, "http://example.com/mirror").WithScopePrefix("http://mirror.org/")
	c := scheduler.NewController(build(t, builder), scheduler.ControllerDeps{
		LaunchEngine: engine.launcher(),
		Prober:       newFakeProber(),
		HTTPClient:   routedClient(srv),
	})
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://mirror.org/docs/", result.Seed)
	assert.Equal(t, "http://mirror.org/", result.Scope)
}

func TestController_SeedErrorStatusIsNotFatal(t *testing.T) {
	srv := newRedirectServer(t)
	engine := newFakeEngine(nil)

	c := scheduler.NewController(build(t, seedCheckConfig(t, "http://example.com/missing")), scheduler.ControllerDeps{
		LaunchEngine: engine.launcher(),
		Prober:       newFakeProber(),
		HTTPClient:   routedClient(srv),
	})
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/missing", result.Seed)
}

func TestController_UnreachableSeedIsFatalAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := routedClient(srv)
	srv.Close()
	engine := newFakeEngine(nil)

	builder := seedCheckConfig(t, "http://example.com/").WithMaxAttempt(2)
	c := scheduler.NewController(build(t, builder), scheduler.ControllerDeps{
		LaunchEngine: engine.launcher(),
		Prober:       newFakeProber(),
		HTTPClient:   client,
	})
	_, err := c.Run(context.Background())

	var ctrlErr *scheduler.ControllerError
	require.ErrorAs(t, err, &ctrlErr)
	assert.Equal(t, scheduler.ErrCauseSeedUnreachable, ctrlErr.Cause)
	assert.Contains(t, ctrlErr.Error(), "after 2 attempts")
	assert.False(t, engine.IsClosed())
}
