package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	"github.com/ethpandaops/resultsaggregator/pkg/config"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log          logrus.FieldLogger
	cfg          *config.APIConfig
	defaults     aggregator.Options
	aggregator   *aggregator.Aggregator
	maxBodyBytes int64
	httpServer   *http.Server
	wg           sync.WaitGroup
	done         chan struct{}
	stopOnce     sync.Once
	stopErr      error
}

// NewServer creates a new API server. Aggregations run with the options of
// the aggregation section unless a request overrides them.
func NewServer(log logrus.FieldLogger, cfg *config.Config) Server {
	return newServer(log, cfg)
}

func newServer(log logrus.FieldLogger, cfg *config.Config) *server {
	log = log.WithField("component", "api")

	return &server{
		log:        log,
		cfg:        &cfg.API,
		defaults:   cfg.AggregatorOptions(),
		aggregator: aggregator.New(log),
		done:       make(chan struct{}),
	}
}

// Start validates the limits and starts the HTTP server.
func (s *server) Start(_ context.Context) error {
	maxBodyBytes, err := s.cfg.Server.MaxBodyBytes()
	if err != nil {
		return fmt.Errorf("resolving body limit: %w", err)
	}

	s.maxBodyBytes = maxBodyBytes

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server. Later calls return the
// result of the first one.
func (s *server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.shutdown()
	})

	return s.stopErr
}

func (s *server) shutdown() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}

	s.wg.Wait()

	s.log.Info("API server stopped")

	return nil
}
