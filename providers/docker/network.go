package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Network declares a user-defined container network.
type Network struct {
	resource.Meta
	Driver   string            `json:"driver,omitempty"`
	Internal bool              `json:"internal,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

func (n *Network) ResourceType() string { return "docker_network" }

type networkHandler struct {
	client *client.Client
}

func (h *networkHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = stringAttr(prior.Attributes, "name")
	}
	if id == "" {
		return nil, false, nil
	}

	inspect, err := h.client.NetworkInspect(ctx, id, network.InspectOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to inspect network %s: %w", id, err)
	}

	attrs := cloneAttrs(prior)
	attrs["id"] = inspect.ID
	attrs["driver"] = inspect.Driver
	attrs["internal"] = inspect.Internal
	setLabels(attrs, inspect.Labels)
	return attrs, true, nil
}

func (h *networkHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	n := desired.(*Network)
	return h.create(ctx, n)
}

func (h *networkHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	n := desired.(*Network)

	// Driver, internal flag and labels are all fixed at creation, so an
	// update replaces the network. Removal fails while containers are
	// still attached, which is the safe outcome.
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = n.Name
	}
	if err := h.client.NetworkRemove(ctx, id); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("failed to remove network %s: %w", id, err)
	}
	return h.create(ctx, n)
}

func (h *networkHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = stringAttr(prior.Attributes, "name")
	}
	if id == "" {
		return nil
	}
	if err := h.client.NetworkRemove(ctx, id); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove network %s: %w", id, err)
	}
	return nil
}

func (h *networkHandler) create(ctx context.Context, n *Network) (map[string]any, error) {
	created, err := h.client.NetworkCreate(ctx, n.Name, network.CreateOptions{
		Driver:   n.Driver,
		Internal: n.Internal,
		Labels:   n.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create network %s: %w", n.Name, err)
	}

	attrs := h.attrs(n)
	attrs["id"] = created.ID
	return attrs, nil
}

func (h *networkHandler) attrs(n *Network) map[string]any {
	attrs := map[string]any{"name": n.Name}
	if n.Driver != "" {
		attrs["driver"] = n.Driver
	}
	if n.Internal {
		attrs["internal"] = true
	}
	setLabels(attrs, n.Labels)
	return attrs
}
