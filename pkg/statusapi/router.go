package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iocafe/iocom-go/internal/logger"
	"github.com/iocafe/iocom-go/pkg/discovery"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/metrics"
	"github.com/iocafe/iocom-go/pkg/registry"
)

// StatusResponse is the /status payload: the process identity plus a dump
// of the registry's blocks and the discovery layer's networks.
type StatusResponse struct {
	DeviceName   string          `json:"device_name"`
	DeviceNr     uint32          `json:"device_nr"`
	NetworkName  string          `json:"network_name"`
	MemoryBlocks []BlockStatus   `json:"memory_blocks"`
	Networks     []NetworkStatus `json:"networks,omitempty"`
}

// BlockStatus describes one memory block.
type BlockStatus struct {
	ID          uint32 `json:"id"`
	MblkName    string `json:"mblk_name"`
	DeviceName  string `json:"device_name"`
	DeviceNr    uint32 `json:"device_nr"`
	NetworkName string `json:"network_name"`
	Direction   string `json:"direction"`
	Nbytes      int    `json:"nbytes"`
	Dynamic     bool   `json:"dynamic,omitempty"`
	Static      bool   `json:"static,omitempty"`
	Sources     int    `json:"sources"`
	Targets     int    `json:"targets"`
}

// NetworkStatus describes one dynamic network.
type NetworkStatus struct {
	Name    string `json:"name"`
	Signals int    `json:"signals"`
	Blocks  int    `json:"blocks"`
}

// NewRouter builds the chi router serving the read-only status surface:
// health probes, the Prometheus scrape endpoint, and a JSON registry dump.
func NewRouter(reg *registry.Registry, disc *discovery.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/healthz", func(r chi.Router) {
		r.Get("/", liveness)
		r.Get("/ready", readiness(reg))
	})

	r.Get("/status", statusHandler(reg, disc))

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/healthz", http.StatusTemporaryRedirect)
	})

	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{"service": "iocomd"}))
}

func readiness(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if reg == nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
			return
		}
		writeJSON(w, http.StatusOK, healthyResponse(map[string]int{
			"memory_blocks": reg.BlockCount(),
		}))
	}
}

func statusHandler(reg *registry.Registry, disc *discovery.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if reg == nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
			return
		}

		deviceName, deviceNr, networkName := reg.Identity()
		resp := StatusResponse{
			DeviceName:  deviceName,
			DeviceNr:    deviceNr,
			NetworkName: networkName,
		}

		for _, b := range reg.Blocks() {
			resp.MemoryBlocks = append(resp.MemoryBlocks, BlockStatus{
				ID:          b.ID,
				MblkName:    b.MblkName,
				DeviceName:  b.DeviceName,
				DeviceNr:    b.DeviceNr,
				NetworkName: b.NetworkName,
				Direction:   b.Direction.String(),
				Nbytes:      b.Nbytes(),
				Dynamic:     b.Flags.Has(mblk.Dynamic),
				Static:      b.Flags.Has(mblk.Static),
				Sources:     len(b.SourceIDs),
				Targets:     len(b.TargetIDs),
			})
		}

		if disc != nil {
			for _, name := range disc.NetworkNames() {
				resp.Networks = append(resp.Networks, NetworkStatus{
					Name:    name,
					Signals: len(disc.Signals(name)),
					Blocks:  len(disc.Shortcuts(name)),
				})
			}
		}

		writeJSON(w, http.StatusOK, okResponse(resp))
	}
}

// requestLogger logs each request through the fabric's structured logger
// instead of chi's default stdlib logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		logger.Debug("status request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			logger.DurationMs(float64(time.Since(start).Microseconds())/1000.0),
		)
	})
}
