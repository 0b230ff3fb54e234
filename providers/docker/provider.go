// Package docker provides the Docker resource catalog: containers,
// networks and volumes managed against a local or remote daemon.
package docker

import (
	"fmt"

	"github.com/docker/docker/client"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// NewClient connects to the Docker daemon. An empty host uses the
// DOCKER_HOST environment or the platform default socket.
func NewClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// Register wires the Docker catalog into reg against one shared client.
func Register(reg *engine.Registry, cli *client.Client) error {
	entries := []struct {
		tag     string
		factory func() resource.Resource
		handler engine.Handler
	}{
		{"docker_container", func() resource.Resource { return &Container{} }, &containerHandler{client: cli}},
		{"docker_network", func() resource.Resource { return &Network{} }, &networkHandler{client: cli}},
		{"docker_volume", func() resource.Resource { return &Volume{} }, &volumeHandler{client: cli}},
	}
	for _, e := range entries {
		if err := reg.Register(e.tag, e.factory, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// cloneAttrs copies a prior instance's attributes so reads can overlay
// live values without mutating recorded state in place.
func cloneAttrs(prior *resource.Instance) map[string]any {
	attrs := make(map[string]any, len(prior.Attributes))
	for k, v := range prior.Attributes {
		attrs[k] = v
	}
	return attrs
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// setLabels records a label map, clearing the key when the remote object
// carries none so an unlabeled object does not pin a stale map.
func setLabels(attrs map[string]any, labels map[string]string) {
	if len(labels) > 0 {
		attrs["labels"] = labels
	} else {
		delete(attrs, "labels")
	}
}
