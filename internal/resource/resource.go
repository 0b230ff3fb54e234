// Package resource defines the contract desired resources implement and
// the tracked instance record the state file stores for each of them.
package resource

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// DefaultPlanPriority is the ordering tie-break used by resource types
// that do not declare their own. Lower sorts earlier.
const DefaultPlanPriority = 100

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Resource is a declared desired configuration unit. Concrete types embed
// Meta for the shared fields and implement ResourceType with their tag.
type Resource interface {
	// ResourceType returns the registry tag, e.g. "aws_s3_bucket".
	ResourceType() string
	// ResourceName returns the declared name, unique per type.
	ResourceName() string
	// Dependencies returns explicit depends_on addresses.
	Dependencies() []string
	// PlanPriority is the ordering tie-break; lower sorts earlier.
	PlanPriority() int
}

// Meta carries the fields every resource declares. Embed it in concrete
// resource structs; the json tags shape the desired snapshot.
type Meta struct {
	Name      string   `json:"name" yaml:"name"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
}

func (m Meta) ResourceName() string { return m.Name }

func (m Meta) Dependencies() []string { return m.DependsOn }

func (m Meta) PlanPriority() int { return DefaultPlanPriority }

// Address returns the stable key tracking r across runs: "type.name".
func Address(r Resource) string {
	return r.ResourceType() + "." + r.ResourceName()
}

// ValidateName reports whether a declared resource name is usable as part
// of an address.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid resource name %q: must match %s", name, namePattern)
	}
	return nil
}

// Attributes serializes r into its desired snapshot: a plain map of the
// resource's json-tagged fields. The snapshot is what plans persist and
// what apply later reconstructs the resource from.
func Attributes(r Resource) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", Address(r), err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", Address(r), err)
	}
	return attrs, nil
}

// Planned returns the desired snapshot without the depends_on field.
// Dependency edges order execution; they are not an attribute the remote
// platform knows about, so diffs and digests exclude them.
func Planned(attrs map[string]any) map[string]any {
	planned := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k == "depends_on" {
			continue
		}
		planned[k] = v
	}
	return planned
}
