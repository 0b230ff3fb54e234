package resource

import "time"

// Instance is the tracked record of one provisioned resource. It is
// created on a successful create, rewritten on update or observed drift,
// and removed on delete.
type Instance struct {
	Address        string         `json:"address"`
	ResourceType   string         `json:"resource_type"`
	Name           string         `json:"name"`
	Attributes     map[string]any `json:"attributes"`
	AttributesHash string         `json:"attributes_hash"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
