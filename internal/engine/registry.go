package engine

import (
	"fmt"
	"sort"

	"github.com/weft-io/weft/internal/resource"
)

// Registration pairs a resource type's model factory with its handler.
// The factory returns a zero value the apply path unmarshals a desired
// snapshot into.
type Registration struct {
	New     func() resource.Resource
	Handler Handler
}

// Registry maps resource type tags to registrations. It is the single
// extension seam: new resource types plug in here without touching the
// engine. Populate it once at startup; it is not safe for concurrent
// mutation.
type Registry struct {
	types map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Registration)}
}

// Register wires tag to a model factory and a handler. Registering the
// same tag twice is a programming error and fails.
func (r *Registry) Register(tag string, factory func() resource.Resource, h Handler) error {
	if tag == "" {
		return fmt.Errorf("resource type tag must not be empty")
	}
	if factory == nil || h == nil {
		return fmt.Errorf("resource type %q: factory and handler are required", tag)
	}
	if _, exists := r.types[tag]; exists {
		return fmt.Errorf("resource type %q already registered", tag)
	}
	r.types[tag] = Registration{New: factory, Handler: h}
	return nil
}

// Get returns the registration for tag, or an UnknownResourceTypeError.
func (r *Registry) Get(tag string) (Registration, error) {
	reg, ok := r.types[tag]
	if !ok {
		return Registration{}, &UnknownResourceTypeError{Tag: tag}
	}
	return reg, nil
}

// Types returns every registered tag, sorted.
func (r *Registry) Types() []string {
	tags := make([]string, 0, len(r.types))
	for tag := range r.types {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
