package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
)

var (
	planOutFile   string
	planDestroy   bool
	planNoRefresh bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what an apply would change",
	Long: `Computes the ordered set of changes that converges the tracked state
to the declared configuration, without touching anything.

By default the tracked state is refreshed against the live platform
first so the plan reflects reality; --no-refresh skips that and plans
purely against the recorded state.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan to a file for a later apply")
	planCmd.Flags().BoolVar(&planDestroy, "destroy", false, "Plan the deletion of every tracked resource")
	planCmd.Flags().BoolVar(&planNoRefresh, "no-refresh", false, "Skip refreshing state before planning")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. Load project and catalog
	cfg, resources, eng, err := loadProject(ctx)
	if err != nil {
		return err
	}

	// 2. Compute the plan
	plan, err := eng.Plan(ctx, resources, engine.PlanOptions{
		Destroy: planDestroy,
		Refresh: !planNoRefresh,
		Outputs: cfg.Outputs,
	})
	if err != nil {
		return err
	}

	// 3. Render
	if !plan.HasChanges() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
	} else {
		renderPlanChanges(plan)
		renderPlanSummary(plan)
	}

	// 4. Persist the artifact if requested
	if planOutFile != "" {
		if err := plan.Save(planOutFile); err != nil {
			return err
		}
		fmt.Printf("\nSaved plan to %s. Apply it with: weft apply %s\n", planOutFile, planOutFile)
	}
	return nil
}
