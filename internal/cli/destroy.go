package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete every tracked resource",
	Long: `Plans and applies the deletion of everything the state file tracks,
dependents before their dependencies.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, resources, eng, err := loadProject(ctx)
	if err != nil {
		return err
	}

	plan, err := eng.Plan(ctx, resources, engine.PlanOptions{Destroy: true})
	if err != nil {
		return err
	}
	if !plan.HasChanges() {
		fmt.Println("Nothing to destroy.")
		return nil
	}

	renderPlanChanges(plan)
	renderPlanSummary(plan)
	if !destroyAutoApprove && !confirm("Do you really want to destroy all tracked resources?") {
		fmt.Println("Destroy cancelled.")
		return nil
	}

	result, err := eng.Apply(ctx, plan)
	if err != nil {
		return describeApplyFailure(err)
	}
	renderApplySummary(result)
	return nil
}
