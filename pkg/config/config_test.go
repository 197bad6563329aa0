package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadAppliesDefaultsWhenFileMissingFields(t *testing.T) {
	path := writeConfigFile(t, `
device_name: sensor1
network_name: factory1
endpoints:
  - transport: tcp
    role: connect
    address: 127.0.0.1:8217
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "sensor1", cfg.DeviceName)
	require.Equal(t, "factory1", cfg.NetworkName)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.EqualValues(t, 6000, cfg.FlowControl.MaxInAir)
	require.Equal(t, "none", cfg.Auth.Mode)
	require.Len(t, cfg.Endpoints, 1)
	require.Equal(t, "tcp", cfg.Endpoints[0].Transport)
}

func TestLoadRejectsMissingDeviceName(t *testing.T) {
	path := writeConfigFile(t, `
network_name: factory1
endpoints:
  - transport: tcp
    role: listen
    address: ":8217"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNoEndpoints(t *testing.T) {
	path := writeConfigFile(t, `
device_name: sensor1
network_name: factory1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	path := writeConfigFile(t, `
device_name: sensor1
network_name: factory1
endpoints:
  - transport: carrier-pigeon
    role: listen
    address: ":8217"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadHonorsExplicitLoggingLevel(t *testing.T) {
	path := writeConfigFile(t, `
device_name: sensor1
network_name: factory1
logging:
  level: debug
  format: json
  output: stderr
endpoints:
  - transport: serial
    role: connect
    address: /dev/ttyUSB0
    serial_baud: 115200
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "serial", cfg.Endpoints[0].Transport)
	require.Equal(t, 115200, cfg.Endpoints[0].SerialBaud)
}

func TestDefaultConfigPathUnderXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	require.Equal(t, "/tmp/xdgtest/iocom/config.yaml", DefaultConfigPath())
}

func TestLoadParsesMaxFrameSize(t *testing.T) {
	path := writeConfigFile(t, `
device_name: sensor1
network_name: factory1
flow_control:
  max_frame_size: 4Ki
endpoints:
  - transport: tcp
    role: connect
    address: 127.0.0.1:8217
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 4096, cfg.FlowControl.MaxFrameSize)
}
