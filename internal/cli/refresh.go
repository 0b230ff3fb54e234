package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconcile tracked state with the live platform",
	Long: `Reads every tracked resource from the platform and rewrites the state
to match: drifted attributes are recorded, vanished resources are
dropped. The declared configuration is not consulted.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, _, eng, err := loadProject(ctx)
	if err != nil {
		return err
	}

	st, err := eng.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("State refreshed: %d resource(s) tracked, serial %d.\n", len(st.Resources), st.Serial)
	return nil
}
