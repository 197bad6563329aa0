// Package commands implements the iocomctl operator CLI: interactive
// configuration, fabric status inspection, and info-block tooling.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "iocomctl",
	Short: "iocomctl - operator CLI for the iocom fabric",
	Long: `iocomctl talks to a running iocomd process through its status API
and helps prepare configuration and info-block files.

Use "iocomctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "Base URL of the iocomd status API")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(infoblockCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("iocomctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}
