// Package state owns the durable record of provisioned resources for one
// project scope: a versioned JSON file with atomic writes, a .backup
// sibling, and the digest helpers plan staleness detection is built on.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/resource"
)

// CurrentVersion is the state file format version.
const CurrentVersion = 1

// State is the persistent ledger for exactly one project scope.
// Serial increases by one on every persisted mutation and never goes
// back; Lineage is fixed for the life of the file.
type State struct {
	Version    int                           `json:"version"`
	ProjectKey string                        `json:"project_key"`
	Serial     int                           `json:"serial"`
	Lineage    string                        `json:"lineage"`
	Resources  map[string]*resource.Instance `json:"resources"`
	Outputs    map[string]any                `json:"outputs"`
}

// New returns an empty state scoped to projectKey with a fresh lineage.
func New(projectKey string) *State {
	return &State{
		Version:    CurrentVersion,
		ProjectKey: projectKey,
		Lineage:    uuid.NewString(),
		Resources:  make(map[string]*resource.Instance),
		Outputs:    make(map[string]any),
	}
}

// Load reads and parses the state file at path.
func Load(path string) (*State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if s.Resources == nil {
		s.Resources = make(map[string]*resource.Instance)
	}
	if s.Outputs == nil {
		s.Outputs = make(map[string]any)
	}
	return &s, nil
}

// LoadOrCreate loads the state at path, or synthesizes an empty one for
// projectKey when no file exists yet.
func LoadOrCreate(path, projectKey string) (*State, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(projectKey), nil
	}
	return Load(path)
}

// Save writes the state atomically: serialize, write a temp file in the
// destination directory, fsync, rename. The previous file, if any, is
// copied to a .backup sibling first so one generation of manual recovery
// is always available.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	backupExisting(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync state file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file %s: %w", path, err)
	}
	return nil
}

// backupExisting copies the current state file to its .backup sibling.
// A missing source is not an error: there is nothing to back up on the
// first save. Other copy failures are logged and ignored so a backup
// problem never blocks persisting progress.
func backupExisting(path string) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logging.Warn("state backup skipped", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path+".backup", raw, 0o600); err != nil {
		logging.Warn("state backup failed", "path", path+".backup", "error", err)
	}
}

// HashAttributes returns the SHA-256 hex digest of the canonical JSON
// form of an attribute map. Equal maps always hash equal, so it serves
// as a cheap drift shortcut before field-level comparison.
func HashAttributes(attrs map[string]any) string {
	return sha256Hex(canonicalJSON(attrs))
}

// Digest returns a SHA-256 hex digest of the state's normalized
// projection: version, project key, lineage, serial, and per resource
// the address, type, name, attributes hash and sorted dependencies.
// Timestamps and raw attributes are excluded so time-only churn never
// invalidates a plan.
func Digest(s *State) string {
	addrs := make([]string, 0, len(s.Resources))
	for addr := range s.Resources {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	views := make([]map[string]any, 0, len(addrs))
	for _, addr := range addrs {
		inst := s.Resources[addr]
		deps := append([]string(nil), inst.Dependencies...)
		sort.Strings(deps)
		views = append(views, map[string]any{
			"address":         inst.Address,
			"resource_type":   inst.ResourceType,
			"name":            inst.Name,
			"attributes_hash": inst.AttributesHash,
			"dependencies":    deps,
		})
	}

	projection := map[string]any{
		"version":     s.Version,
		"project_key": s.ProjectKey,
		"lineage":     s.Lineage,
		"serial":      s.Serial,
		"resources":   views,
	}
	return sha256Hex(canonicalJSON(projection))
}

// canonicalJSON renders v compact with sorted map keys. Values the JSON
// encoder rejects fall back to their fmt rendering, which is also
// deterministic, rather than failing the digest.
func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sha256Hex(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
