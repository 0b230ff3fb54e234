package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Volume declares a named volume. Volumes are identified by name, so
// the declared name doubles as the daemon-side identifier.
type Volume struct {
	resource.Meta
	Driver     string            `json:"driver,omitempty"`
	DriverOpts map[string]string `json:"driver_opts,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

func (v *Volume) ResourceType() string { return "docker_volume" }

type volumeHandler struct {
	client *client.Client
}

func (h *volumeHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	name := stringAttr(prior.Attributes, "name")
	if name == "" {
		return nil, false, nil
	}

	vol, err := h.client.VolumeInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to inspect volume %s: %w", name, err)
	}

	attrs := cloneAttrs(prior)
	attrs["driver"] = vol.Driver
	attrs["mountpoint"] = vol.Mountpoint
	setLabels(attrs, vol.Labels)
	return attrs, true, nil
}

func (h *volumeHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	v := desired.(*Volume)
	return h.create(ctx, v)
}

func (h *volumeHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	v := desired.(*Volume)

	// Volume settings are fixed at creation, so an update replaces the
	// volume. Any data it held is gone; removal fails while a container
	// still mounts it.
	name := stringAttr(prior.Attributes, "name")
	if name == "" {
		name = v.Name
	}
	if err := h.client.VolumeRemove(ctx, name, true); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("failed to remove volume %s: %w", name, err)
	}
	return h.create(ctx, v)
}

func (h *volumeHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	name := stringAttr(prior.Attributes, "name")
	if name == "" {
		return nil
	}
	if err := h.client.VolumeRemove(ctx, name, true); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove volume %s: %w", name, err)
	}
	return nil
}

func (h *volumeHandler) create(ctx context.Context, v *Volume) (map[string]any, error) {
	vol, err := h.client.VolumeCreate(ctx, volume.CreateOptions{
		Name:       v.Name,
		Driver:     v.Driver,
		DriverOpts: v.DriverOpts,
		Labels:     v.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create volume %s: %w", v.Name, err)
	}

	attrs := h.attrs(v)
	attrs["mountpoint"] = vol.Mountpoint
	return attrs, nil
}

func (h *volumeHandler) attrs(v *Volume) map[string]any {
	attrs := map[string]any{"name": v.Name}
	if v.Driver != "" {
		attrs["driver"] = v.Driver
	}
	if len(v.DriverOpts) > 0 {
		attrs["driver_opts"] = v.DriverOpts
	}
	setLabels(attrs, v.Labels)
	return attrs
}
