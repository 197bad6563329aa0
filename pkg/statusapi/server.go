// Package statusapi exposes a small read-only HTTP surface over a fabric
// process: liveness/readiness probes, the Prometheus scrape endpoint, and
// a JSON dump of the registry and discovery state for iocomctl status.
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/iocafe/iocom-go/internal/logger"
	"github.com/iocafe/iocom-go/pkg/discovery"
	"github.com/iocafe/iocom-go/pkg/registry"
)

// Config holds the status server's listen parameters.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server wraps the http.Server serving the status surface.
type Server struct {
	server       *http.Server
	cfg          Config
	shutdownOnce sync.Once
}

// NewServer builds a stopped Server; call Start to begin serving. disc may
// be nil when the process runs without dynamic discovery.
func NewServer(cfg Config, reg *registry.Registry, disc *discovery.Manager) *Server {
	cfg.applyDefaults()
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(reg, disc),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		cfg: cfg,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return fmt.Errorf("statusapi: serve: %w", err)
	}
}

func (s *Server) shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err = s.server.Shutdown(ctx)
	})
	return err
}
