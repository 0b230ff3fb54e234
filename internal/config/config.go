// Package config loads weft project files: a YAML document declaring the
// project scope, provider settings and desired resources, optionally
// extended by Starlark modules.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Config is a parsed project file. Resources holds the raw resource
// blocks (declared ones plus module output); decoding them into typed
// resources happens in BuildResources so the config layer never needs
// to know the catalog.
type Config struct {
	Project   string           `yaml:"project"`
	State     string           `yaml:"state"`
	Providers Providers        `yaml:"providers"`
	Resources []map[string]any `yaml:"resources"`
	Modules   []ModuleSpec     `yaml:"modules"`
	Outputs   map[string]any   `yaml:"outputs"`

	// Dir is where the config file lives; module paths resolve
	// relative to it.
	Dir string `yaml:"-"`
}

// Providers carries optional per-provider connection settings. Absent
// sections fall back to each SDK's environment defaults.
type Providers struct {
	AWS    *AWSSettings    `yaml:"aws"`
	Docker *DockerSettings `yaml:"docker"`
}

// AWSSettings overrides the default AWS client configuration.
type AWSSettings struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// DockerSettings overrides the default Docker daemon connection.
type DockerSettings struct {
	Host string `yaml:"host"`
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand empty; bare $ stays untouched so credentials with
// dollar signs survive.
func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Load reads and parses the config at path, expands ${VAR} references,
// then evaluates the Starlark modules and appends their resource blocks.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("config %s: project is required", path)
	}
	if cfg.State == "" {
		cfg.State = cfg.Project + ".state.json"
	}
	cfg.Dir = filepath.Dir(path)

	for i := range cfg.Modules {
		if err := cfg.Modules[i].validate(); err != nil {
			return nil, fmt.Errorf("config %s: modules[%d]: %w", path, i, err)
		}
	}
	expanded, err := expandModules(cfg.Modules, cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Resources = append(cfg.Resources, expanded...)

	return &cfg, nil
}

// BuildResources decodes every resource block through the registry's
// model factories. The "type" key selects the factory, the remaining
// keys populate the model.
func (c *Config) BuildResources(reg *engine.Registry) ([]resource.Resource, error) {
	out := make([]resource.Resource, 0, len(c.Resources))
	for i, block := range c.Resources {
		r, err := buildResource(reg, block)
		if err != nil {
			return nil, fmt.Errorf("resources[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func buildResource(reg *engine.Registry, block map[string]any) (resource.Resource, error) {
	tag, ok := block["type"].(string)
	if !ok || tag == "" {
		return nil, fmt.Errorf("resource block is missing a type")
	}
	registration, err := reg.Get(tag)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(block))
	for k, v := range block {
		if k == "type" {
			continue
		}
		fields[k] = v
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("invalid attributes for %s: %w", tag, err)
	}
	r := registration.New()
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("invalid attributes for %s: %w", tag, err)
	}
	if err := resource.ValidateName(r.ResourceName()); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return r, nil
}
