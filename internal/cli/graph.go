package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

var graphDot bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resource dependency graph",
	Long: `Prints the order in which the declared resources would be created.
With --dot the graph is emitted in Graphviz format instead:

  weft graph --dot | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphDot, "dot", false, "Emit Graphviz DOT instead of the create order")
}

func runGraph(cmd *cobra.Command, args []string) error {
	_, resources, _, err := loadProject(cmd.Context())
	if err != nil {
		return err
	}

	byAddr := make(map[string]resource.Resource, len(resources))
	addrs := make([]string, 0, len(resources))
	for _, r := range resources {
		addr := resource.Address(r)
		if _, dup := byAddr[addr]; dup {
			return &engine.DuplicateAddressError{Address: addr}
		}
		byAddr[addr] = r
		addrs = append(addrs, addr)
	}

	depMap := make(map[string][]string, len(addrs))
	priorities := make(map[string]int, len(addrs))
	for addr, r := range byAddr {
		depMap[addr] = r.Dependencies()
		priorities[addr] = r.PlanPriority()
	}
	g := engine.NewGraph(addrs, depMap, priorities)

	if graphDot {
		fmt.Print(g.DOT())
		return nil
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	fmt.Println("Create order:")
	for i, addr := range order {
		fmt.Printf("  %2d. %s\n", i+1, addr)
	}
	return nil
}
