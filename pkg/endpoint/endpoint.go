// Package endpoint implements the listening side of the fabric: an end
// point owns a stream.Listener, turns each accepted stream into a
// Connection in acceptor role, and drives those connections to
// completion. Two scheduling models are supported: Run drives a
// single-threaded cooperative loop (one Tick per connection per pass);
// Serve spawns a worker goroutine per connection behind a
// semaphore-bounded accept loop.
package endpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iocafe/iocom-go/internal/logger"
	"github.com/iocafe/iocom-go/pkg/conn"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/metrics"
	"github.com/iocafe/iocom-go/pkg/registry"
	"github.com/iocafe/iocom-go/pkg/stream"
)

// Config bundles the knobs an End point needs beyond the per-connection
// Config it hands to every accepted connection.
type Config struct {
	// AcceptThrottle is the minimum spacing between accept attempts.
	// Zero means no throttle beyond the listener's own poll deadline.
	AcceptThrottle time.Duration

	// TickPace is how often Run re-polls every live connection and retries
	// an accept when running the cooperative loop. Defaults to 10ms.
	TickPace time.Duration

	// MaxConnections caps concurrently accepted connections. Zero means
	// unlimited.
	MaxConnections int

	// ConnectionConfig is copied (with a fresh Authenticator reference) into
	// every Connection built for an accepted stream.
	ConnectionConfig conn.Config

	// OnConnection, when set, is invoked with every freshly accepted
	// Connection before its first Tick, so the caller can wire per-process
	// hooks (discovery's OnMbinfo, block announcement on OnEstablished).
	OnConnection func(*conn.Connection)
}

func (c *Config) applyDefaults() {
	if c.TickPace <= 0 {
		c.TickPace = 10 * time.Millisecond
	}
}

// Endpoint owns a listener and the set of connections it has accepted.
type Endpoint struct {
	listener stream.Listener
	registry *registry.Registry
	cfg      Config
	metrics  *metrics.ConnectionMetrics

	mu         sync.Mutex
	conns      []*conn.Connection
	lastAccept time.Time
}

// New wraps an already-open listener. The listener's lifecycle (close) is
// owned by the Endpoint from this point on.
func New(ln stream.Listener, reg *registry.Registry, cfg Config) *Endpoint {
	cfg.applyDefaults()
	return &Endpoint{
		listener: ln,
		registry: reg,
		cfg:      cfg,
		metrics:  metrics.NewConnectionMetrics(),
	}
}

// Addr returns the listener's bound address.
func (e *Endpoint) Addr() string { return e.listener.Addr() }

// Close stops accepting and releases the listener. Already-accepted
// connections are left running; callers that also want those torn down
// should cancel the context passed to Run/Serve first.
func (e *Endpoint) Close() error { return e.listener.Close() }

// Connections returns a snapshot of the currently tracked connections.
func (e *Endpoint) Connections() []*conn.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*conn.Connection, len(e.conns))
	copy(out, e.conns)
	return out
}

// Run drives the single-threaded cooperative model: on every
// pass it attempts one throttled accept and ticks every tracked connection
// once. It blocks until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickPace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tryAccept(ctx)
			e.tickAll(ctx)
		}
	}
}

// Serve drives the thread-per-connection model: each accepted
// connection gets its own goroutine ticking it at cfg.TickPace until it
// fails, closes, or ctx is cancelled. Serve itself blocks on the accept
// loop and returns when ctx is cancelled or the listener errors.
func (e *Endpoint) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sem := newSemaphore(e.cfg.MaxConnections)

	throttle := time.NewTicker(e.acceptThrottle())
	defer throttle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-throttle.C:
		}

		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}

		s, err := e.listener.Accept(ctx)
		if err != nil {
			if sem != nil {
				<-sem
			}
			if errors.Is(err, iocstatus.ErrPending) {
				continue
			}
			if errors.Is(err, iocstatus.ErrStreamClosed) {
				return nil
			}
			logger.Warn("endpoint accept failed", "error", err)
			continue
		}

		c := e.accept(s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if sem != nil {
					<-sem
				}
			}()
			e.serveOne(ctx, c)
		}()
	}
}

func (e *Endpoint) acceptThrottle() time.Duration {
	if e.cfg.AcceptThrottle > 0 {
		return e.cfg.AcceptThrottle
	}
	return e.cfg.TickPace
}

// tryAccept makes one non-blocking accept attempt, self-throttled to
// cfg.AcceptThrottle.
func (e *Endpoint) tryAccept(ctx context.Context) {
	now := time.Now()
	if e.cfg.AcceptThrottle > 0 && now.Sub(e.lastAccept) < e.cfg.AcceptThrottle {
		return
	}
	e.lastAccept = now

	if e.cfg.MaxConnections > 0 && e.liveCount() >= e.cfg.MaxConnections {
		return
	}

	s, err := e.listener.Accept(ctx)
	if err != nil {
		if !errors.Is(err, iocstatus.ErrPending) {
			logger.Debug("endpoint accept failed", "error", err)
		}
		return
	}
	c := e.accept(s)
	e.mu.Lock()
	e.conns = append(e.conns, c)
	e.mu.Unlock()
}

func (e *Endpoint) accept(s stream.Stream) *conn.Connection {
	logger.Info("endpoint accepted connection", "remote", s.RemoteAddr(), "transport", s.Kind())
	c := conn.New(conn.RoleAcceptor, s, e.registry, e.cfg.ConnectionConfig)
	if e.cfg.OnConnection != nil {
		e.cfg.OnConnection(c)
	}
	return c
}

func (e *Endpoint) liveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.conns {
		if c.State != conn.Failed && c.State != conn.Closing {
			n++
		}
	}
	return n
}

// tickAll ticks every tracked connection once and drops the ones that
// have gone terminal.
func (e *Endpoint) tickAll(ctx context.Context) {
	e.mu.Lock()
	conns := make([]*conn.Connection, len(e.conns))
	copy(conns, e.conns)
	e.mu.Unlock()

	live := conns[:0]
	for _, c := range conns {
		if err := c.Tick(ctx); err != nil {
			logger.Debug("connection tick error", "error", err, "state", c.State)
		}
		e.observe(c)
		if c.State != conn.Failed {
			live = append(live, c)
		}
	}

	e.mu.Lock()
	e.conns = append(e.conns[:0], live...)
	e.mu.Unlock()
}

// serveOne ticks a single connection in its own goroutine until it fails or
// ctx is cancelled.
func (e *Endpoint) serveOne(ctx context.Context, c *conn.Connection) {
	ticker := time.NewTicker(e.cfg.TickPace)
	defer ticker.Stop()

	e.mu.Lock()
	e.conns = append(e.conns, c)
	e.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				logger.Debug("connection tick error", "error", err, "state", c.State)
			}
			e.observe(c)
			if c.State == conn.Failed {
				return
			}
		}
	}
}

func (e *Endpoint) observe(c *conn.Connection) {
	if e.metrics == nil {
		return
	}
	label := c.PeerDeviceName
	if label == "" {
		label = "pending"
	}
	e.metrics.SetState(label, int(c.State))
	e.metrics.SetBytesSent(label, uint32(c.Flow.InAir()))
}

func newSemaphore(n int) chan struct{} {
	if n <= 0 {
		return nil
	}
	return make(chan struct{}, n)
}
