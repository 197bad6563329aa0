package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/internal/cli/prompt"
	"github.com/iocafe/iocom-go/pkg/config"
)

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create an iocomd configuration file",
	Long: `Walk through the fabric settings interactively and write an iocomd
configuration file. Pair with "iocomd init" when a non-interactive sample
is enough.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "Output path (default: $XDG_CONFIG_HOME/iocom/config.yaml)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	deviceName, err := prompt.InputRequired("Device name")
	if err != nil {
		return wizardErr(err)
	}
	networkName, err := prompt.Input("Network name", "iocom")
	if err != nil {
		return wizardErr(err)
	}
	deviceNr, err := prompt.InputUint("Device number (0 = automatic)", 0)
	if err != nil {
		return wizardErr(err)
	}

	path := initOutput
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if config.DefaultConfigExists() && path == config.DefaultConfigPath() && !initForce {
		overwrite, err := prompt.Confirm(fmt.Sprintf("%s exists, overwrite", path))
		if err != nil {
			return wizardErr(err)
		}
		if !overwrite {
			return nil
		}
		initForce = true
	}

	if err := config.InitConfigToPath(path, deviceName, networkName, deviceNr, initForce); err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nEdit the endpoints section, then start the fabric with: iocomd start")
	return nil
}

func wizardErr(err error) error {
	if prompt.IsAborted(err) {
		return nil
	}
	return err
}
