package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iocafe/iocom-go/internal/cli/output"
	"github.com/iocafe/iocom-go/pkg/statusapi"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running fabric's registry and networks",
	Long: `Query a running iocomd process's status API and print its identity,
memory blocks, and discovered dynamic networks.

Examples:
  iocomctl status
  iocomctl status --server http://device7:9090`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/status")
	if err != nil {
		return fmt.Errorf("query %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Status string                   `json:"status"`
		Data   statusapi.StatusResponse `json:"data"`
		Error  string                   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status API returned %s: %s", resp.Status, envelope.Error)
	}

	st := envelope.Data
	if err := output.SimpleTable(os.Stdout, [][2]string{
		{"Device", st.DeviceName},
		{"Device nr", strconv.FormatUint(uint64(st.DeviceNr), 10)},
		{"Network", st.NetworkName},
	}); err != nil {
		return err
	}

	fmt.Println()
	blocks := output.NewTableData("ID", "NAME", "DEVICE", "NR", "NETWORK", "DIR", "BYTES", "SRC", "TGT")
	for _, b := range st.MemoryBlocks {
		name := b.MblkName
		if b.Dynamic {
			name += " (dynamic)"
		}
		if b.Static {
			name += " (static)"
		}
		blocks.AddRow(
			strconv.FormatUint(uint64(b.ID), 10),
			name,
			b.DeviceName,
			strconv.FormatUint(uint64(b.DeviceNr), 10),
			b.NetworkName,
			b.Direction,
			strconv.Itoa(b.Nbytes),
			strconv.Itoa(b.Sources),
			strconv.Itoa(b.Targets),
		)
	}
	if err := output.PrintTable(os.Stdout, blocks); err != nil {
		return err
	}

	if len(st.Networks) > 0 {
		fmt.Println()
		nets := output.NewTableData("NETWORK", "SIGNALS", "BLOCKS")
		for _, n := range st.Networks {
			nets.AddRow(n.Name, strconv.Itoa(n.Signals), strconv.Itoa(n.Blocks))
		}
		if err := output.PrintTable(os.Stdout, nets); err != nil {
			return err
		}
	}
	return nil
}
