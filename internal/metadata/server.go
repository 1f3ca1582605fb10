package metadata

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// MetricsServer exposes a Metrics registry over HTTP for the duration of a crawl.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}
}

// StartMetricsServer listens on addr and serves /metrics in the background.
func StartMetricsServer(addr string, metrics *Metrics, logger *slog.Logger) (*MetricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	s := &MetricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", listener.Addr().String()))
	return s, nil
}

func (s *MetricsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
