package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/weft-io/weft/internal/config"
	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
	"github.com/weft-io/weft/providers/aws"
	"github.com/weft-io/weft/providers/docker"
	"github.com/weft-io/weft/providers/memory"
)

// loadConfig parses the project file named by the global --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// buildRegistry assembles the resource catalog. The memory catalog is
// always available; AWS and Docker join when the config declares their
// provider section.
func buildRegistry(ctx context.Context, cfg *config.Config) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if err := memory.Register(reg, memory.NewStore()); err != nil {
		return nil, err
	}

	if cfg.Providers.AWS != nil {
		clients, err := aws.NewClients(ctx, cfg.Providers.AWS.Region, cfg.Providers.AWS.Profile)
		if err != nil {
			return nil, err
		}
		if err := aws.Register(reg, clients); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.Docker != nil {
		cli, err := docker.NewClient(cfg.Providers.Docker.Host)
		if err != nil {
			return nil, err
		}
		if err := docker.Register(reg, cli); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// resolveStatePath anchors a relative state path at the config file's
// directory so commands behave the same from any working directory.
func resolveStatePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.State) {
		return cfg.State
	}
	return filepath.Join(cfg.Dir, cfg.State)
}

// loadProject wires the usual command preamble: config, catalog, desired
// resources and an engine bound to the project's scope and state file.
func loadProject(ctx context.Context) (*config.Config, []resource.Resource, *engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	resources, err := cfg.BuildResources(reg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	eng := engine.New(reg, cfg.Project, resolveStatePath(cfg))
	return cfg, resources, eng, nil
}

// confirm asks the operator before anything irreversible happens.
func confirm(prompt string) bool {
	fmt.Printf("\n%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}
