package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/weft-io/weft/internal/engine"
)

// renderPlanChanges prints the non-noop changes as a table, one row per
// resource with its field-level detail.
func renderPlanChanges(p *engine.Plan) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"", "ADDRESS", "CHANGES"})
	for _, change := range p.Changes {
		if change.Action == engine.ActionNoop {
			continue
		}
		t.AppendRow(table.Row{actionMarker(change.Action), change.Address, describeChange(change)})
	}
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = true
	t.Render()
}

func actionMarker(action engine.Action) string {
	switch action {
	case engine.ActionCreate:
		return text.FgGreen.Sprint("+")
	case engine.ActionUpdate:
		return text.FgYellow.Sprint("~")
	case engine.ActionDelete:
		return text.FgRed.Sprint("-")
	default:
		return " "
	}
}

// describeChange renders the per-field detail of one change.
func describeChange(change *engine.ResourceChange) string {
	var lines []string
	switch change.Action {
	case engine.ActionCreate:
		for _, k := range sortedKeys(change.Planned) {
			lines = append(lines, fmt.Sprintf("%s = %s", k, formatValue(change.Planned[k])))
		}
	case engine.ActionUpdate:
		keys := make([]string, 0, len(change.Diff))
		for k := range change.Diff {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d := change.Diff[k]
			lines = append(lines, fmt.Sprintf("%s = %s -> %s", k, formatValue(d.From), formatValue(d.To)))
		}
	case engine.ActionDelete:
		for _, k := range sortedKeys(change.Prior) {
			lines = append(lines, fmt.Sprintf("%s = %s", k, formatValue(change.Prior[k])))
		}
	}
	if len(lines) == 0 {
		return string(change.Action)
	}
	return strings.Join(lines, "\n")
}

// formatValue returns a single-line human-readable rendering of a value.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderPlanSummary prints the per-action counts.
func renderPlanSummary(p *engine.Plan) {
	counts := p.Summary()
	fmt.Printf("\nPlan: %d to create, %d to change, %d to destroy.\n",
		counts[engine.ActionCreate], counts[engine.ActionUpdate], counts[engine.ActionDelete])
}

// renderApplySummary prints what an apply actually did.
func renderApplySummary(result *engine.ApplyResult) {
	counts := result.Summary()
	fmt.Printf("\nApply complete! Resources: %d added, %d changed, %d destroyed.\n",
		counts[engine.ActionCreate], counts[engine.ActionUpdate], counts[engine.ActionDelete])
}

// renderOutputs prints the project outputs sorted by name.
func renderOutputs(outputs map[string]any) {
	if len(outputs) == 0 {
		return
	}
	fmt.Println("\nOutputs:")
	for _, k := range sortedKeys(outputs) {
		fmt.Printf("  %s = %s\n", k, formatValue(outputs[k]))
	}
}
