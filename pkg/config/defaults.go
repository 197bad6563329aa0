package config

import (
	"strings"
	"time"

	"github.com/iocafe/iocom-go/internal/bytesize"
)

// ApplyDefaults fills zero-valued fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyFlowControlDefaults(&cfg.FlowControl)
	applyAuthDefaults(&cfg.Auth)

	if cfg.NetworkName == "" {
		cfg.NetworkName = "iocom"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyFlowControlDefaults sets a 16-bit credit window: max_in_air
// defaults high enough to keep a socket link busy without letting
// bytes_sent wrap past bytes_acknowledged.
func applyFlowControlDefaults(cfg *FlowControlConfig) {
	if cfg.MaxInAir == 0 {
		cfg.MaxInAir = 6000
	}
	if cfg.MaxAckInAir == 0 {
		cfg.MaxAckInAir = 4000
	}
	if cfg.UnacknowledgedLimit == 0 {
		cfg.UnacknowledgedLimit = 8000
	}
	if cfg.KeepaliveInterval == 0 {
		cfg.KeepaliveInterval = 2 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = bytesize.KiB
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "none"
	}
}
