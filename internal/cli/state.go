package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the tracked state",
	Long:  `Read-only commands over the project's state file. No lock is taken.`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked resources",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show one tracked resource as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var statePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Write the raw state file to stdout",
	RunE:  runStatePull,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(statePullCmd)
}

// loadTrackedState reads the project's state without locking; a missing
// file reads as an empty state.
func loadTrackedState() (*state.State, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return state.LoadOrCreate(resolveStatePath(cfg), cfg.Project)
}

func runStateList(cmd *cobra.Command, args []string) error {
	st, err := loadTrackedState()
	if err != nil {
		return err
	}
	if len(st.Resources) == 0 {
		fmt.Println("No resources in state.")
		return nil
	}

	fmt.Printf("Project %s, serial %d, lineage %s\n\n", st.ProjectKey, st.Serial, st.Lineage)

	addrs := make([]string, 0, len(st.Resources))
	for addr := range st.Resources {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ADDRESS", "TYPE", "NAME", "UPDATED"})
	for _, addr := range addrs {
		inst := st.Resources[addr]
		t.AppendRow(table.Row{addr, inst.ResourceType, inst.Name, inst.UpdatedAt.Format(time.RFC3339)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Printf("\nTotal: %d resource(s)\n", len(st.Resources))
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	st, err := loadTrackedState()
	if err != nil {
		return err
	}

	inst, ok := st.Resources[args[0]]
	if !ok {
		return fmt.Errorf("resource %s not found in state", args[0])
	}
	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", args[0], err)
	}
	fmt.Println(string(data))
	return nil
}

func runStatePull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(resolveStatePath(cfg))
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	_, err = os.Stdout.Write(raw)
	return err
}
