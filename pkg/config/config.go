// Package config loads the static configuration for an iocom fabric
// process: device identity, listening end points, flow-control tunables,
// persistence location and authentication mode. Configuration is layered
// through viper with mapstructure decode hooks and validated with
// go-playground/validator struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/iocafe/iocom-go/internal/bytesize"
	"github.com/iocafe/iocom-go/internal/telemetry"
)

// Config is the root configuration for an iocomd process.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (IOCOM_*), for keys the configuration file
//     sets; a variable for a key absent from the file is not read, and
//     none is read when no file is found
//  2. Configuration file (YAML)
//  3. Defaults applied by ApplyDefaults
type Config struct {
	// DeviceName is this device's name within its network, e.g. "sensor1".
	DeviceName string `mapstructure:"device_name" validate:"required" yaml:"device_name"`

	// NetworkName scopes device numbering and discovery.
	NetworkName string `mapstructure:"network_name" validate:"required" yaml:"network_name"`

	// DeviceNr is this device's static device number, or 0 to request
	// automatic numbering from the controller.
	DeviceNr uint32 `mapstructure:"device_nr" yaml:"device_nr"`

	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Persist     PersistConfig     `mapstructure:"persist" yaml:"persist"`
	FlowControl FlowControlConfig `mapstructure:"flow_control" yaml:"flow_control"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`

	// Endpoints lists the transports this process listens on or dials out
	// to; at least one is required for the process to be useful.
	Endpoints []EndpointConfig `mapstructure:"endpoints" validate:"required,min=1,dive" yaml:"endpoints"`

	// InfoBlockPath, when set, names a JSON file describing this device's
	// memory blocks and signals; iocomd builds the static "info" block and
	// the described blocks from it at startup.
	InfoBlockPath string `mapstructure:"info_block_path" yaml:"info_block_path,omitempty"`

	// InfoBlockCompress zstd-compresses the info block content on the wire.
	InfoBlockCompress bool `mapstructure:"info_block_compress" yaml:"info_block_compress,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing and Pyroscope profiling.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls continuous profiling via Pyroscope.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP surface.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// PersistConfig configures the badger-backed persistent block store.
type PersistConfig struct {
	// Dir is the directory badger stores its files in. Empty with InMemory
	// false means "no persistence": loads always return nil.
	Dir      string `mapstructure:"dir" yaml:"dir"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory"`
}

// FlowControlConfig tunes the credit-based flow control: the
// bytes-in-flight ceilings connections enforce before they stop sending
// or request acks.
type FlowControlConfig struct {
	MaxInAir            uint32        `mapstructure:"max_in_air" validate:"required,gt=0" yaml:"max_in_air"`
	MaxAckInAir         uint32        `mapstructure:"max_ack_in_air" validate:"required,gt=0" yaml:"max_ack_in_air"`
	UnacknowledgedLimit uint32        `mapstructure:"unacknowledged_limit" validate:"required,gt=0" yaml:"unacknowledged_limit"`
	KeepaliveInterval   time.Duration `mapstructure:"keepalive_interval" validate:"required,gt=0" yaml:"keepalive_interval"`
	PollInterval        time.Duration `mapstructure:"poll_interval" validate:"required,gt=0" yaml:"poll_interval"`

	// MaxFrameSize caps one data frame's payload, accepting human-readable
	// sizes ("1Ki", "4Ki"). A snapshot larger than this is chunked across
	// several frames.
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" validate:"required,gt=0" yaml:"max_frame_size"`
}

// AuthConfig selects the authentication path a connection takes during the
// Authenticating state: plain username/password, or a JWT
// bearer token for the CLOUD_CON path.
type AuthConfig struct {
	Mode          string `mapstructure:"mode" validate:"required,oneof=password jwt none" yaml:"mode"`
	Username      string `mapstructure:"username" yaml:"username"`
	PasswordHash  string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
	JWTSigningKey string `mapstructure:"jwt_signing_key" yaml:"jwt_signing_key,omitempty"`
	JWTIssuer     string `mapstructure:"jwt_issuer" yaml:"jwt_issuer,omitempty"`
	TrustCertPath string `mapstructure:"trust_cert_path" yaml:"trust_cert_path,omitempty"`
}

// EndpointConfig describes one transport this process exposes or dials.
type EndpointConfig struct {
	// Transport is one of "tcp", "tls", or "serial".
	Transport string `mapstructure:"transport" validate:"required,oneof=tcp tls serial" yaml:"transport"`

	// Role is "listen" (accept connections) or "connect" (dial out),
	// matching the end point vs. connecting-client split.
	Role string `mapstructure:"role" validate:"required,oneof=listen connect" yaml:"role"`

	// Address is a "host:port" for tcp/tls, or a device path for serial.
	Address string `mapstructure:"address" validate:"required" yaml:"address"`

	SerialBaud int `mapstructure:"serial_baud" yaml:"serial_baud,omitempty"`

	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file,omitempty"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file,omitempty"`
	TLSCAFile   string `mapstructure:"tls_ca_file" yaml:"tls_ca_file,omitempty"`
}

// ToTelemetryConfig adapts TelemetryConfig to internal/telemetry's shape.
func (c TelemetryConfig) ToTelemetryConfig(serviceName, serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// ToProfilingConfig adapts ProfilingConfig to internal/telemetry's shape.
func (c ProfilingConfig) ToProfilingConfig(serviceName, serviceVersion string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Endpoint,
		ProfileTypes:   c.ProfileTypes,
	}
}

// Load reads configuration from configPath (or the default search path when
// empty), applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	ApplyDefaults(cfg)

	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		))); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
		cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags via go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("IOCOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "iocom")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "iocom")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
