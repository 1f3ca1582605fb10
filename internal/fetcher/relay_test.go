package fetcher_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturePrefix(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/capture/record/id_/", fetcher.CapturePrefix("localhost", 8080))
	assert.Equal(t, "http://[::1]:9000/capture/record/id_/", fetcher.CapturePrefix("::1", 9000))
}

func TestCaptureRelay_RequestsRecordEndpoint(t *testing.T) {
	var mu sync.Mutex
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.RequestURI()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, strings.Repeat("x", 64*1024))
	}))
	t.Cleanup(srv.Close)

	host, port := splitHostPort(t, srv.URL)
	relay := fetcher.NewCaptureRelay(srv.Client(), host, port, "test-agent", time.Second, nil)
	target := mustTarget(t, "https://example.com/files/doc.pdf?v=2")

	assert.Equal(t, srv.URL+"/capture/record/id_/https://example.com/files/doc.pdf?v=2", relay.CaptureURL(target))

	err := relay.Capture(context.Background(), target)
	require.Nil(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/capture/record/id_/https://example.com/files/doc.pdf?v=2", gotPath)
}

func TestCaptureRelay_ServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "proxy down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	sink := &recordingSink{}
	host, port := splitHostPort(t, srv.URL)
	relay := fetcher.NewCaptureRelay(srv.Client(), host, port, "", time.Second, sink)

	err := relay.Capture(context.Background(), mustTarget(t, "https://example.com/a.zip"))
	require.NotNil(t, err)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, fetcher.ErrCauseCaptureStatus, fetchErr.Cause)
	assert.True(t, fetchErr.IsRetryable())
	assert.Len(t, sink.errors, 1)
}

func TestCaptureRelay_Unreachable(t *testing.T) {
	relay := fetcher.NewCaptureRelay(nil, "127.0.0.1", 1, "", 200*time.Millisecond, nil)
	err := relay.Capture(context.Background(), mustTarget(t, "https://example.com/a.zip"))
	assert.NotNil(t, err)
}
