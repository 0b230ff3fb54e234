package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/preview"
)

var (
	previewBranch      string
	previewDestroy     bool
	previewAutoApprove bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Apply the project into a branch-scoped preview environment",
	Long: `Derives a preview scope from the current git branch (or --branch) and
converges the configuration inside it, tracked by its own state file
next to the project's. The base environment is never touched.

--destroy tears the preview down and removes its state artifacts.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewBranch, "branch", "", "Branch name to scope the preview by (default: current git branch)")
	previewCmd.Flags().BoolVar(&previewDestroy, "destroy", false, "Tear the preview down and remove its state artifacts")
	previewCmd.Flags().BoolVar(&previewAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. Derive the preview scope
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, err := preview.Compute(cfg.Project, resolveStatePath(cfg), cfg.Dir, previewBranch)
	if err != nil {
		return err
	}
	fmt.Printf("Preview scope %s (branch %q)\nState file %s\n\n", spec.ProjectKey, spec.Branch, spec.StatePath)

	// 2. Build catalog and a preview-scoped engine
	reg, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	resources, err := cfg.BuildResources(reg)
	if err != nil {
		return fmt.Errorf("config %s: %w", configPath, err)
	}
	eng := engine.New(reg, spec.ProjectKey, spec.StatePath)

	if previewDestroy {
		return destroyPreview(cmd, eng, spec)
	}

	// 3. Converge the preview
	plan, err := eng.Plan(ctx, resources, engine.PlanOptions{Refresh: true, Outputs: cfg.Outputs})
	if err != nil {
		return err
	}
	if plan.HasChanges() {
		renderPlanChanges(plan)
		renderPlanSummary(plan)
		if !previewAutoApprove && !confirm("Do you want to perform these actions?") {
			fmt.Println("Preview cancelled.")
			return nil
		}
	} else {
		fmt.Println("No changes. Preview is up-to-date.")
	}

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

// destroyPreview deletes everything the preview scope tracks, then
// removes its state artifacts.
func destroyPreview(cmd *cobra.Command, eng *engine.Engine, spec *preview.Spec) error {
	ctx := cmd.Context()

	plan, err := eng.Plan(ctx, nil, engine.PlanOptions{Destroy: true})
	if err != nil {
		return err
	}
	if plan.HasChanges() {
		renderPlanChanges(plan)
		renderPlanSummary(plan)
		if !previewAutoApprove && !confirm("Do you really want to destroy this preview?") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
		if _, err := eng.Apply(ctx, plan); err != nil {
			return describeApplyFailure(err)
		}
	}

	if err := preview.Cleanup(spec.StatePath); err != nil {
		return err
	}
	fmt.Printf("Preview %s destroyed; state artifacts removed.\n", spec.ProjectKey)
	return nil
}
