package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the project file without touching state",
	Long: `Parses the project file, runs its Starlark modules, decodes every
resource block against the catalog and checks address uniqueness.
Neither the state file nor the platform is touched.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, resources, _, err := loadProject(cmd.Context())
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		addr := resource.Address(r)
		if _, dup := seen[addr]; dup {
			return &engine.DuplicateAddressError{Address: addr}
		}
		seen[addr] = struct{}{}
	}

	fmt.Printf("Configuration is valid: %d resource(s) declared.\n", len(resources))
	return nil
}
