package cli

import (
	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Declarative provisioning without the ceremony",
	Long: `Weft converges declared resources against what a platform actually
runs: it plans the create/update/delete set in dependency order, applies
it change by change, and keeps a durable, lineage-checked state file.

Resources are declared in a YAML project file, optionally expanded by
Starlark modules. Catalogs exist for AWS, Docker and an in-process
memory platform.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "weft.yaml", "Path to the project file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(versionCmd)
}
