package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/pkg/config"
)

var (
	initForce       bool
	initDeviceName  string
	initNetworkName string
	initDeviceNr    uint32
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write a sample iocomd configuration file.

By default the file is created at $XDG_CONFIG_HOME/iocom/config.yaml.
Use --config to pick a custom path, --force to overwrite.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().StringVar(&initDeviceName, "device-name", "iocom", "Device name to seed the config with")
	initCmd.Flags().StringVar(&initNetworkName, "network-name", "iocom", "Network name to seed the config with")
	initCmd.Flags().Uint32Var(&initDeviceNr, "device-nr", 0, "Device number (0 requests automatic numbering)")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cfgFile != "" {
		configPath = cfgFile
		err = config.InitConfigToPath(cfgFile, initDeviceName, initNetworkName, initDeviceNr, initForce)
	} else {
		configPath, err = config.InitConfig(initDeviceName, initNetworkName, initDeviceNr, initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the fabric with: iocomd start")
	fmt.Printf("  3. Or specify custom config: iocomd start --config %s\n", configPath)
	return nil
}
