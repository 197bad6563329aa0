package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the template `iocomd init` writes: a minimal device
// identity plus one TCP listener, with the tunable sections present but
// commented so an operator can discover them without reading docs.
const sampleConfig = `# iocom fabric configuration
device_name: %q
network_name: %q
device_nr: %d

logging:
  level: INFO
  format: text
  output: stdout

endpoints:
  - transport: tcp
    role: listen
    address: ":6368"
  # - transport: tls
  #   role: listen
  #   address: ":6369"
  #   tls_cert_file: /etc/iocom/server.crt
  #   tls_key_file: /etc/iocom/server.key
  # - transport: serial
  #   role: connect
  #   address: /dev/ttyUSB0
  #   serial_baud: 115200

auth:
  mode: none
  # mode: password
  # username: service
  # password_hash: ""   # generate with iocomctl passwd

persist:
  dir: ""        # empty: no persistence
  in_memory: false

metrics:
  enabled: true
  port: 9090

# flow_control:
#   max_in_air: 6000
#   max_ack_in_air: 4000
#   unacknowledged_limit: 8000
#   keepalive_interval: 2s
#   poll_interval: 50ms

# info_block_path: /etc/iocom/infoblock.json

telemetry:
  enabled: false
`

// InitConfig writes the sample configuration to the default path,
// refusing to overwrite unless force is set. Returns the path written.
func InitConfig(deviceName, networkName string, deviceNr uint32, force bool) (string, error) {
	path := DefaultConfigPath()
	return path, InitConfigToPath(path, deviceName, networkName, deviceNr, force)
}

// InitConfigToPath writes the sample configuration to an explicit path.
func InitConfigToPath(path, deviceName, networkName string, deviceNr uint32, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config: %s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	if deviceName == "" {
		deviceName = "iocom"
	}
	if networkName == "" {
		networkName = "iocom"
	}
	content := fmt.Sprintf(sampleConfig, deviceName, networkName, deviceNr)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}
	return nil
}

// DefaultConfigExists reports whether a config file is present at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}
