package engine

import (
	"context"

	"github.com/weft-io/weft/internal/resource"
)

// Scope identifies the project namespace a handler call operates in.
// It is passed explicitly into every call; handlers must not reach for
// ambient or global scope state.
type Scope struct {
	ProjectKey string
}

// Handler implements the CRUD verbs for one resource type against the
// remote platform. Attribute maps returned from Read, Create and Update
// must be plain JSON-serializable values: the engine hashes them,
// persists them and feeds them back into comparison.
//
// The engine treats each call as an atomic black box. It never retries,
// never imposes timeouts, and consults cancellation only between calls;
// ctx is for the handler's own outbound requests.
type Handler interface {
	// Read fetches the live attributes behind a tracked instance.
	// found=false reports that the remote object no longer exists.
	Read(ctx context.Context, scope Scope, prior *resource.Instance) (attrs map[string]any, found bool, err error)

	// Create provisions desired and returns the resulting attributes.
	Create(ctx context.Context, scope Scope, desired resource.Resource) (map[string]any, error)

	// Update converges the remote object to desired and returns the
	// resulting attributes.
	Update(ctx context.Context, scope Scope, desired resource.Resource, prior *resource.Instance) (map[string]any, error)

	// Delete removes the remote object tracked by prior.
	Delete(ctx context.Context, scope Scope, prior *resource.Instance) error
}
