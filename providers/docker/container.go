package docker

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// stopTimeoutSeconds bounds how long a container gets to shut down
// cleanly before the daemon kills it.
const stopTimeoutSeconds = 10

// Container declares a running container. Ports maps host ports to
// container ports ("8080" -> "80" or "80/udp"); Volumes holds bind
// specs in the daemon's "source:target" form; Platform pins the image
// platform ("linux/amd64") on multi-arch hosts.
type Container struct {
	resource.Meta
	Image         string            `json:"image"`
	Command       []string          `json:"command,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Ports         map[string]string `json:"ports,omitempty"`
	Volumes       []string          `json:"volumes,omitempty"`
	NetworkMode   string            `json:"network_mode,omitempty"`
	RestartPolicy string            `json:"restart_policy,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	User          string            `json:"user,omitempty"`
	Platform      string            `json:"platform,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

func (c *Container) ResourceType() string { return "docker_container" }

type containerHandler struct {
	client *client.Client
}

func (h *containerHandler) Read(ctx context.Context, _ engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = stringAttr(prior.Attributes, "name")
	}
	if id == "" {
		return nil, false, nil
	}

	inspect, err := h.client.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to inspect container %s: %w", id, err)
	}

	attrs := cloneAttrs(prior)
	attrs["id"] = inspect.ID
	if inspect.Config != nil {
		attrs["image"] = inspect.Config.Image
		setLabels(attrs, inspect.Config.Labels)
	}
	if inspect.State != nil {
		attrs["status"] = inspect.State.Status
	}
	return attrs, true, nil
}

func (h *containerHandler) Create(ctx context.Context, _ engine.Scope, desired resource.Resource) (map[string]any, error) {
	c := desired.(*Container)
	return h.run(ctx, c)
}

func (h *containerHandler) Update(ctx context.Context, _ engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	c := desired.(*Container)

	// Container configuration is immutable, so an update replaces the
	// container under the same name.
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = c.Name
	}
	if err := h.remove(ctx, id); err != nil {
		return nil, err
	}
	return h.run(ctx, c)
}

func (h *containerHandler) Delete(ctx context.Context, _ engine.Scope, prior *resource.Instance) error {
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		id = stringAttr(prior.Attributes, "name")
	}
	if id == "" {
		return nil
	}
	return h.remove(ctx, id)
}

// run pulls the image, creates the container and starts it.
func (h *containerHandler) run(ctx context.Context, c *Container) (map[string]any, error) {
	platform, err := parsePlatform(c.Platform)
	if err != nil {
		return nil, err
	}
	if err := h.pull(ctx, c.Image, c.Platform); err != nil {
		return nil, err
	}

	bindings := portMap(c.Ports)
	cfg := &container.Config{
		Image:        c.Image,
		Cmd:          strslice.StrSlice(c.Command),
		Env:          envList(c.Env),
		Labels:       c.Labels,
		WorkingDir:   c.WorkingDir,
		User:         c.User,
		ExposedPorts: exposedPorts(bindings),
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Binds:        c.Volumes,
	}
	if c.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(c.NetworkMode)
	}
	if c.RestartPolicy != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyMode(c.RestartPolicy)}
	}

	created, err := h.client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, platform, c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container %s: %w", c.Name, err)
	}
	if err := h.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container %s: %w", c.Name, err)
	}

	attrs := h.attrs(c)
	attrs["id"] = created.ID
	attrs["status"] = "running"
	return attrs, nil
}

// pull fetches the image; the pull only completes once the progress
// stream is drained.
func (h *containerHandler) pull(ctx context.Context, ref, platform string) error {
	rc, err := h.client.ImagePull(ctx, ref, image.PullOptions{Platform: platform})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// parsePlatform parses an "os/arch" or "os/arch/variant" pin. Empty
// means no pin, letting the daemon pick the host platform.
func parsePlatform(spec string) (*v1.Platform, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid platform %q: expected os/arch or os/arch/variant", spec)
	}
	p := &v1.Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}
	return p, nil
}

// remove stops and force-removes a container, tolerating one that is
// already gone.
func (h *containerHandler) remove(ctx context.Context, id string) error {
	timeout := stopTimeoutSeconds
	if err := h.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	if err := h.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

func (h *containerHandler) attrs(c *Container) map[string]any {
	attrs := map[string]any{
		"name":  c.Name,
		"image": c.Image,
	}
	if len(c.Command) > 0 {
		attrs["command"] = c.Command
	}
	if len(c.Env) > 0 {
		attrs["env"] = c.Env
	}
	if len(c.Ports) > 0 {
		attrs["ports"] = c.Ports
	}
	if len(c.Volumes) > 0 {
		attrs["volumes"] = c.Volumes
	}
	if c.NetworkMode != "" {
		attrs["network_mode"] = c.NetworkMode
	}
	if c.RestartPolicy != "" {
		attrs["restart_policy"] = c.RestartPolicy
	}
	if c.WorkingDir != "" {
		attrs["working_dir"] = c.WorkingDir
	}
	if c.User != "" {
		attrs["user"] = c.User
	}
	if c.Platform != "" {
		attrs["platform"] = c.Platform
	}
	setLabels(attrs, c.Labels)
	return attrs
}

// portMap turns the declared host -> container port pairs into daemon
// bindings. Container ports default to tcp.
func portMap(ports map[string]string) nat.PortMap {
	if len(ports) == 0 {
		return nil
	}
	bindings := make(nat.PortMap, len(ports))
	for hostPort, containerPort := range ports {
		if !strings.Contains(containerPort, "/") {
			containerPort += "/tcp"
		}
		port := nat.Port(containerPort)
		bindings[port] = append(bindings[port], nat.PortBinding{HostIP: "0.0.0.0", HostPort: hostPort})
	}
	return bindings
}

func exposedPorts(bindings nat.PortMap) nat.PortSet {
	if len(bindings) == 0 {
		return nil
	}
	exposed := make(nat.PortSet, len(bindings))
	for port := range bindings {
		exposed[port] = struct{}{}
	}
	return exposed
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		list = append(list, k+"="+env[k])
	}
	return list
}
