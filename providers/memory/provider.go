// Package memory provides an in-process resource catalog backed by a
// shared store. Nothing leaves the process, which makes it the catalog
// of choice for demos and for exercising the full plan and apply path
// in tests without any platform credentials.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

// Object declares an opaque stored object. Data carries an arbitrary
// JSON-shaped payload; changing it updates the object in place.
type Object struct {
	resource.Meta
	Data map[string]any `json:"data,omitempty"`
}

func (o *Object) ResourceType() string { return "memory_object" }

// Store holds every object the catalog has provisioned, keyed by
// project scope and object id. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	objects map[string]map[string]any
}

func NewStore() *Store {
	return &Store{objects: make(map[string]map[string]any)}
}

// Len reports how many objects the store currently holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Store) put(key string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = attrs
}

func (s *Store) get(key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.objects[key]
	return attrs, ok
}

func (s *Store) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

// Register wires the memory catalog into reg against one shared store.
func Register(reg *engine.Registry, store *Store) error {
	return reg.Register("memory_object",
		func() resource.Resource { return &Object{} },
		&objectHandler{store: store})
}

type objectHandler struct {
	store *Store
}

func (h *objectHandler) Read(_ context.Context, scope engine.Scope, prior *resource.Instance) (map[string]any, bool, error) {
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		return nil, false, nil
	}
	attrs, ok := h.store.get(objectKey(scope, id))
	if !ok {
		return nil, false, nil
	}
	copied, err := jsonCopy(attrs)
	if err != nil {
		return nil, false, err
	}
	return copied, true, nil
}

func (h *objectHandler) Create(_ context.Context, scope engine.Scope, desired resource.Resource) (map[string]any, error) {
	o := desired.(*Object)
	return h.write(scope, o, uuid.NewString())
}

func (h *objectHandler) Update(_ context.Context, scope engine.Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error) {
	o := desired.(*Object)
	id := stringAttr(prior.Attributes, "id")
	if id == "" {
		return nil, fmt.Errorf("object %s has no tracked id", o.Name)
	}
	return h.write(scope, o, id)
}

func (h *objectHandler) Delete(_ context.Context, scope engine.Scope, prior *resource.Instance) error {
	if id := stringAttr(prior.Attributes, "id"); id != "" {
		h.store.remove(objectKey(scope, id))
	}
	return nil
}

func (h *objectHandler) write(scope engine.Scope, o *Object, id string) (map[string]any, error) {
	attrs := map[string]any{
		"name": o.Name,
		"id":   id,
	}
	if len(o.Data) > 0 {
		attrs["data"] = o.Data
	}
	// The store keeps its own normalized copy so it behaves like a
	// remote JSON API rather than sharing memory with the caller.
	stored, err := jsonCopy(attrs)
	if err != nil {
		return nil, err
	}
	h.store.put(objectKey(scope, id), stored)
	return jsonCopy(attrs)
}

func objectKey(scope engine.Scope, id string) string {
	return scope.ProjectKey + "/" + id
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func jsonCopy(attrs map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize object attributes: %w", err)
	}
	var copied map[string]any
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, fmt.Errorf("failed to serialize object attributes: %w", err)
	}
	return copied, nil
}
