package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Action is the kind of change a plan entry carries.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionNoop   Action = "NOOP"
)

// FieldDiff records one field's transition on an UPDATE change.
type FieldDiff struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// ResourceChange is one planned operation on one resource. Desired is
// the full serialized resource (apply reconstructs the typed resource
// from it), Planned is Desired without dependency edges, Prior is the
// tracked attribute snapshot at planning time.
type ResourceChange struct {
	Address      string               `json:"address"`
	ResourceType string               `json:"resource_type"`
	Action       Action               `json:"action"`
	Desired      map[string]any       `json:"desired,omitempty"`
	Prior        map[string]any       `json:"prior,omitempty"`
	Planned      map[string]any       `json:"planned,omitempty"`
	Diff         map[string]FieldDiff `json:"diff,omitempty"`
}

// PlanMetadata freezes the facts a plan was computed against. The state
// lineage/serial/digest recorded here exist solely so apply can detect
// staleness; they are never used to recompute a diff.
type PlanMetadata struct {
	ProjectKey    string    `json:"project_key"`
	CreatedAt     time.Time `json:"created_at"`
	Destroy       bool      `json:"destroy"`
	Refresh       bool      `json:"refresh"`
	StateLineage  string    `json:"state_lineage"`
	StateSerial   int       `json:"state_serial"`
	StateDigest   string    `json:"state_digest"`
	ConfigDigest  string    `json:"config_digest"`
	EngineVersion string    `json:"engine_version"`
}

// Plan is a frozen, ordered set of changes. Apply executes Changes in
// exactly this order. Outputs carries the configuration's static outputs
// so a successful apply can persist them into state; a destroy plan
// leaves it nil and clears them.
type Plan struct {
	Metadata PlanMetadata      `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

// Summary returns change counts per action.
func (p *Plan) Summary() map[Action]int {
	counts := make(map[Action]int)
	for _, c := range p.Changes {
		counts[c.Action]++
	}
	return counts
}

// HasChanges reports whether the plan contains any non-NOOP change.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoop {
			return true
		}
	}
	return false
}

// Save writes the plan as indented JSON, suitable for a later Apply on
// another process or host.
func (p *Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan file %s: %w", path, err)
	}
	return nil
}

// LoadPlan reads a plan file written by Save.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}
	return &p, nil
}

// ApplyResult lists the changes an apply actually executed, in execution
// order. NOOPs are never included. On a partial failure it holds
// everything that succeeded before the failing change.
type ApplyResult struct {
	Applied []*ResourceChange `json:"applied"`
}

// Summary returns applied-change counts per action.
func (r *ApplyResult) Summary() map[Action]int {
	counts := make(map[Action]int)
	for _, c := range r.Applied {
		counts[c.Action]++
	}
	return counts
}
