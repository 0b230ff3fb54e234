package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
)

var (
	applyAutoApprove bool
	applyNoRefresh   bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [plan-file]",
	Short: "Apply the planned changes",
	Long: `Converges the platform to the declared configuration.

Without an argument a fresh plan is computed, shown and confirmed.
With a plan file written by 'weft plan -o', exactly that plan is
executed; it is rejected if the state changed since it was computed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	applyCmd.Flags().BoolVar(&applyNoRefresh, "no-refresh", false, "Skip refreshing state before planning")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. Load project and catalog
	cfg, resources, eng, err := loadProject(ctx)
	if err != nil {
		return err
	}

	// 2. Load or compute the plan
	var plan *engine.Plan
	if len(args) == 1 {
		plan, err = engine.LoadPlan(args[0])
		if err != nil {
			return err
		}
		if plan.Metadata.ProjectKey != eng.ProjectKey() {
			return fmt.Errorf("plan belongs to project %q, config declares %q",
				plan.Metadata.ProjectKey, eng.ProjectKey())
		}
	} else {
		plan, err = eng.Plan(ctx, resources, engine.PlanOptions{
			Refresh: !applyNoRefresh,
			Outputs: cfg.Outputs,
		})
		if err != nil {
			return err
		}
	}

	// 3. Show and confirm
	if plan.HasChanges() {
		renderPlanChanges(plan)
		renderPlanSummary(plan)
		if !applyAutoApprove && !confirm("Do you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	} else {
		fmt.Println("No changes. Infrastructure is up-to-date.")
	}

	// 4. Apply; outputs persist even on a no-change plan
	result, err := eng.Apply(ctx, plan)
	if err != nil {
		return describeApplyFailure(err)
	}

	if plan.HasChanges() {
		renderApplySummary(result)
	}
	renderOutputs(plan.Outputs)
	return nil
}

// describeApplyFailure adds the partial-progress context a failed apply
// carries before handing the error back to cobra.
func describeApplyFailure(err error) error {
	var applyErr *engine.ApplyError
	if errors.As(err, &applyErr) {
		fmt.Printf("\nApplied %d change(s) before failing on %s; completed work is saved in state.\n",
			len(applyErr.Result.Applied), applyErr.Address)
		return err
	}
	var canceled *engine.CanceledError
	if errors.As(err, &canceled) {
		fmt.Printf("\nInterrupted after %d change(s); completed work is saved in state.\n",
			len(canceled.Result.Applied))
	}
	return err
}
