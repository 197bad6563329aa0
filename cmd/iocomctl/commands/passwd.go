package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/internal/cli/prompt"
	"github.com/iocafe/iocom-go/pkg/auth"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Generate a password hash for the auth section",
	Long: `Prompt for a password and print its bcrypt hash, suitable for the
password_hash field of iocomd's auth configuration.`,
	RunE: runPasswd,
}

func runPasswd(cmd *cobra.Command, args []string) error {
	password, err := prompt.Password("Password")
	if err != nil {
		return wizardErr(err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	confirm, err := prompt.Password("Confirm password")
	if err != nil {
		return wizardErr(err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
