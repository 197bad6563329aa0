package commands

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/internal/logger"
	"github.com/iocafe/iocom-go/internal/telemetry"
	"github.com/iocafe/iocom-go/pkg/auth"
	"github.com/iocafe/iocom-go/pkg/config"
	"github.com/iocafe/iocom-go/pkg/conn"
	"github.com/iocafe/iocom-go/pkg/devicenr"
	"github.com/iocafe/iocom-go/pkg/discovery"
	"github.com/iocafe/iocom-go/pkg/endpoint"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/metrics"
	"github.com/iocafe/iocom-go/pkg/persist"
	"github.com/iocafe/iocom-go/pkg/registry"
	"github.com/iocafe/iocom-go/pkg/statusapi"
	"github.com/iocafe/iocom-go/pkg/stream"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the iocom fabric process",
	Long: `Start the fabric process with the specified configuration.

Examples:
  # Start with default config location
  iocomd start

  # Start with custom config
  iocomd start --config /etc/iocom/config.yaml

  # Override a setting through the environment
  IOCOM_LOGGING_LEVEL=DEBUG iocomd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.ToTelemetryConfig("iocomd", Version))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.Profiling.ToProfilingConfig("iocomd", Version))
	if err != nil {
		return fmt.Errorf("initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var store persist.Provider
	if cfg.Persist.Dir != "" || cfg.Persist.InMemory {
		badgerStore, err := persist.OpenBadger(cfg.Persist.Dir, cfg.Persist.InMemory)
		if err != nil {
			return err
		}
		defer badgerStore.Close()
		store = badgerStore
	}

	reg := registry.New(cfg.DeviceName, cfg.NetworkName, cfg.DeviceNr, metrics.NewFabricMetrics())
	disc := discovery.NewManager(reg)

	assigner := devicenr.New(store)
	if err := assigner.Load(ctx); err != nil {
		return fmt.Errorf("load auto device_nr table: %w", err)
	}

	if cfg.InfoBlockPath != "" {
		if err := buildInfoBlocks(reg, cfg); err != nil {
			return err
		}
	}

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		return err
	}

	connCfg := conn.Config{
		DeviceName:          cfg.DeviceName,
		NetworkName:         cfg.NetworkName,
		DeviceNr:            cfg.DeviceNr,
		MaxInAir:            uint16(cfg.FlowControl.MaxInAir),
		MaxAckInAir:         uint16(cfg.FlowControl.MaxAckInAir),
		UnacknowledgedLimit: uint16(cfg.FlowControl.UnacknowledgedLimit),
		MaxChunk:            int(cfg.FlowControl.MaxFrameSize.Uint64()),
		Authenticator:       authenticator,
		DeviceNrAssigner:    assigner,
	}

	logger.Info("iocom fabric starting",
		logger.Device(cfg.DeviceName),
		logger.DeviceNr(cfg.DeviceNr),
		logger.Network(cfg.NetworkName),
		"blocks", reg.BlockCount())

	var wg sync.WaitGroup
	poll := cfg.FlowControl.PollInterval

	for _, ep := range cfg.Endpoints {
		switch ep.Role {
		case "listen":
			ln, err := buildListener(ep, poll)
			if err != nil {
				return err
			}
			e := endpoint.New(ln, reg, endpoint.Config{
				TickPace:         poll,
				ConnectionConfig: connCfg,
				OnConnection: func(c *conn.Connection) {
					wireConnection(c, reg, disc)
				},
			})
			logger.Info("end point listening", logger.Transport(ep.Transport), "address", e.Addr())
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := e.Serve(ctx); err != nil {
					logger.Error("end point stopped", logger.Err(err))
				}
			}()
		case "connect":
			epCfg := ep
			wg.Add(1)
			go func() {
				defer wg.Done()
				dialLoop(ctx, epCfg, reg, disc, connCfg, poll)
			}()
		}
	}

	if cfg.Metrics.Enabled {
		statusSrv := statusapi.NewServer(statusapi.Config{Port: cfg.Metrics.Port}, reg, disc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusSrv.Start(ctx); err != nil {
				logger.Error("status server stopped", logger.Err(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("fabric is running, press Ctrl+C to stop")

	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received")
	cancel()
	wg.Wait()
	logger.Info("fabric stopped")
	return nil
}

// wireConnection hooks a fresh connection into dynamic discovery and
// announces every locally owned block once the link is established.
func wireConnection(c *conn.Connection, reg *registry.Registry, disc *discovery.Manager) {
	connID := uuid.NewString()
	c.OnMbinfo = disc.HandleMbinfo
	c.OnEstablished = func(c *conn.Connection) {
		logger.Info("connection established",
			logger.ConnID(connID),
			logger.Role(c.Role.String()),
			logger.Device(c.PeerDeviceName),
			logger.DeviceNr(c.PeerDeviceNr),
			logger.Network(c.PeerNetworkName))
		for _, b := range reg.Blocks() {
			if b.Flags.Has(mblk.Dynamic) {
				continue
			}
			if err := c.AnnounceBlock(b, false); err != nil {
				logger.Warn("announce block failed", logger.MblkName(b.MblkName), logger.Err(err))
			}
		}
	}
}

// dialLoop keeps one outgoing connection alive: dial, tick until it
// fails, back off, redial. Each fresh connection re-synchronizes with
// key-frames since its source buffers start with no shadow.
func dialLoop(ctx context.Context, ep config.EndpointConfig, reg *registry.Registry, disc *discovery.Manager, connCfg conn.Config, poll time.Duration) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for ctx.Err() == nil {
		s, err := dialStream(ctx, ep, poll)
		if err != nil {
			logger.Warn("dial failed", logger.Transport(ep.Transport), "address", ep.Address, logger.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		c := conn.New(conn.RoleInitiator, s, reg, connCfg)
		wireConnection(c, reg, disc)

		ticker := time.NewTicker(poll)
		for c.State != conn.Failed {
			select {
			case <-ctx.Done():
				ticker.Stop()
				_ = c.Close()
				return
			case <-ticker.C:
				_ = c.Tick(ctx)
			}
		}
		ticker.Stop()
		_ = c.Close()
		logger.Info("connection lost, reconnecting", logger.Transport(ep.Transport), "address", ep.Address)
	}
}

func buildListener(ep config.EndpointConfig, poll time.Duration) (stream.Listener, error) {
	switch ep.Transport {
	case "tcp":
		return stream.ListenTCP(ep.Address, poll)
	case "tls":
		tlsCfg, err := serverTLSConfig(ep)
		if err != nil {
			return nil, err
		}
		return stream.ListenTLS(ep.Address, tlsCfg, poll)
	default:
		return nil, fmt.Errorf("transport %q cannot listen", ep.Transport)
	}
}

func dialStream(ctx context.Context, ep config.EndpointConfig, poll time.Duration) (stream.Stream, error) {
	switch ep.Transport {
	case "tcp":
		d := net.Dialer{Timeout: 10 * time.Second}
		nc, err := d.DialContext(ctx, "tcp", ep.Address)
		if err != nil {
			return nil, err
		}
		return stream.NewTCP(nc, poll), nil
	case "tls":
		tlsCfg, err := clientTLSConfig(ep)
		if err != nil {
			return nil, err
		}
		return stream.DialTLS(ctx, ep.Address, tlsCfg, poll)
	case "serial":
		return stream.OpenSerial(ep.Address, baudRate(ep.SerialBaud), poll)
	default:
		return nil, fmt.Errorf("unknown transport %q", ep.Transport)
	}
}

func baudRate(baud int) stream.BaudRate {
	switch baud {
	case 9600:
		return stream.Baud9600
	case 19200:
		return stream.Baud19200
	case 38400:
		return stream.Baud38400
	case 57600:
		return stream.Baud57600
	default:
		return stream.Baud115200
	}
}

func serverTLSConfig(ep config.EndpointConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(ep.TLSCertFile, ep.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func clientTLSConfig(ep config.EndpointConfig) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if ep.TLSCAFile != "" {
		pem, err := os.ReadFile(ep.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", ep.TLSCAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func buildAuthenticator(cfg *config.Config) (conn.Authenticator, error) {
	switch cfg.Auth.Mode {
	case "password":
		return auth.NewPasswordAuthenticator(cfg.Auth.Username, cfg.Auth.PasswordHash), nil
	case "jwt":
		svc, err := auth.NewJWTService(auth.JWTConfig{
			Secret: cfg.Auth.JWTSigningKey,
			Issuer: cfg.Auth.JWTIssuer,
		})
		if err != nil {
			return nil, err
		}
		return &conn.JWTAuthenticator{Service: svc}, nil
	default:
		return nil, nil
	}
}

// buildInfoBlocks creates the memory blocks a device's info-block JSON
// file describes plus the static "info" block carrying the document
// itself, sized to the payload, or to the 24-byte block minimum with zero
// padding when the payload is shorter.
func buildInfoBlocks(reg *registry.Registry, cfg *config.Config) error {
	raw, err := os.ReadFile(cfg.InfoBlockPath)
	if err != nil {
		return fmt.Errorf("read info block file: %w", err)
	}
	ib, err := discovery.ParseInfoBlock(raw)
	if err != nil {
		return err
	}
	if err := discovery.Validate(ib); err != nil {
		return err
	}

	for _, mb := range ib.MemoryBlocks {
		nbytes := 24
		for _, sig := range mb.Signals {
			t, err := discovery.ParseSignalType(sig.Type)
			if err != nil {
				return err
			}
			if end := sig.Addr + discovery.SignalBytes(t, sig.N); end > nbytes {
				nbytes = end
			}
		}
		dir := mblk.Up
		if mb.Direction == "down" {
			dir = mblk.Down
		}
		if _, err := reg.CreateBlock(mb.Name, cfg.DeviceName, cfg.DeviceNr, cfg.NetworkName, nbytes, dir, mblk.AutoSync); err != nil {
			return fmt.Errorf("create block %q: %w", mb.Name, err)
		}
		logger.Info("memory block created", logger.MblkName(mb.Name), "direction", mb.Direction, logger.Len(nbytes))
	}

	payload, err := discovery.EncodeInfoBlock(ib, cfg.InfoBlockCompress)
	if err != nil {
		return err
	}
	nbytes := len(payload)
	if nbytes < 24 {
		nbytes = 24
	}
	infoBlk, err := reg.CreateBlock(discovery.InfoBlockName, cfg.DeviceName, cfg.DeviceNr, cfg.NetworkName, nbytes, mblk.Up, mblk.Static)
	if err != nil {
		return fmt.Errorf("create info block: %w", err)
	}
	reg.WithLock(func() {
		copy(infoBlk.Bytes, payload)
	})
	return nil
}
