package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weft version %s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH)
	},
}
