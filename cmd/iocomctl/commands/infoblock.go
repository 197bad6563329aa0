package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/pkg/discovery"
)

var infoblockCmd = &cobra.Command{
	Use:   "infoblock",
	Short: "Work with device info-block files",
}

var infoblockSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for info-block documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := discovery.Schema()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var infoblockValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an info-block file before flashing it to a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ib, err := discovery.ParseInfoBlock(raw)
		if err != nil {
			return err
		}
		if err := discovery.Validate(ib); err != nil {
			return err
		}

		blocks, signals := 0, 0
		for _, mb := range ib.MemoryBlocks {
			blocks++
			signals += len(mb.Signals)
		}
		fmt.Printf("%s: valid (%d memory blocks, %d signals)\n", args[0], blocks, signals)
		return nil
	},
}

var infoblockPackCmd = &cobra.Command{
	Use:   "pack <in> <out>",
	Short: "Compress an info-block file for constrained devices",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ib, err := discovery.ParseInfoBlock(raw)
		if err != nil {
			return err
		}
		if err := discovery.Validate(ib); err != nil {
			return err
		}
		packed, err := discovery.EncodeInfoBlock(ib, true)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], packed, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s: %d bytes -> %d bytes\n", args[1], len(raw), len(packed))
		return nil
	},
}

func init() {
	infoblockCmd.AddCommand(infoblockSchemaCmd)
	infoblockCmd.AddCommand(infoblockValidateCmd)
	infoblockCmd.AddCommand(infoblockPackCmd)
}
