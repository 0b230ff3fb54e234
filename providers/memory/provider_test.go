package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/resource"
)

func newObject(name string, data map[string]any) *Object {
	return &Object{Meta: resource.Meta{Name: name}, Data: data}
}

func TestObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	h := &objectHandler{store: store}
	scope := engine.Scope{ProjectKey: "DEMO"}

	created, err := h.Create(ctx, scope, newObject("greeting", map[string]any{"message": "hello"}))
	require.NoError(t, err)
	require.NotEmpty(t, created["id"])
	require.Equal(t, 1, store.Len())

	prior := &resource.Instance{Attributes: created}
	live, found, err := h.Read(ctx, scope, prior)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "greeting", live["name"])
	require.Equal(t, map[string]any{"message": "hello"}, live["data"])

	updated, err := h.Update(ctx, scope, newObject("greeting", map[string]any{"message": "goodbye"}), prior)
	require.NoError(t, err)
	require.Equal(t, created["id"], updated["id"], "update should keep the object id")
	require.Equal(t, 1, store.Len())

	require.NoError(t, h.Delete(ctx, scope, prior))
	require.Equal(t, 0, store.Len())

	_, found, err = h.Read(ctx, scope, prior)
	require.NoError(t, err)
	require.False(t, found)
}

func TestReadNormalizesStoredValues(t *testing.T) {
	ctx := context.Background()
	h := &objectHandler{store: NewStore()}
	scope := engine.Scope{ProjectKey: "DEMO"}

	created, err := h.Create(ctx, scope, newObject("counts", map[string]any{"replicas": 3}))
	require.NoError(t, err)

	live, found, err := h.Read(ctx, scope, &resource.Instance{Attributes: created})
	require.NoError(t, err)
	require.True(t, found)
	data := live["data"].(map[string]any)
	require.Equal(t, float64(3), data["replicas"], "stored values should come back JSON-normalized")
}

func TestScopesDoNotShareObjects(t *testing.T) {
	ctx := context.Background()
	h := &objectHandler{store: NewStore()}

	created, err := h.Create(ctx, engine.Scope{ProjectKey: "ALPHA"}, newObject("shared_name", nil))
	require.NoError(t, err)

	_, found, err := h.Read(ctx, engine.Scope{ProjectKey: "BETA"}, &resource.Instance{Attributes: created})
	require.NoError(t, err)
	require.False(t, found, "an object created in one scope must be invisible to another")
}

func TestUpdateRequiresTrackedID(t *testing.T) {
	h := &objectHandler{store: NewStore()}
	prior := &resource.Instance{Attributes: map[string]any{"name": "greeting"}}

	_, err := h.Update(context.Background(), engine.Scope{ProjectKey: "DEMO"}, newObject("greeting", nil), prior)
	require.ErrorContains(t, err, "no tracked id")
}

// TestEngineRoundTrip drives the full plan/apply/destroy path through
// the engine with the memory catalog as the platform.
func TestEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	reg := engine.NewRegistry()
	require.NoError(t, Register(reg, store))

	eng := engine.New(reg, "DEMO", filepath.Join(t.TempDir(), "demo.state.json"))
	desired := []resource.Resource{
		newObject("greeting", map[string]any{"message": "hello"}),
	}

	plan, err := eng.Plan(ctx, desired, engine.PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	require.Equal(t, engine.ActionCreate, plan.Changes[0].Action)

	result, err := eng.Apply(ctx, plan)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Equal(t, 1, store.Len())

	// A second plan over unchanged config must converge to a no-op.
	plan, err = eng.Plan(ctx, desired, engine.PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	require.Equal(t, engine.ActionNoop, plan.Changes[0].Action)

	// Changing the payload plans and applies an in-place update.
	desired = []resource.Resource{
		newObject("greeting", map[string]any{"message": "goodbye"}),
	}
	plan, err = eng.Plan(ctx, desired, engine.PlanOptions{})
	require.NoError(t, err)
	require.Equal(t, engine.ActionUpdate, plan.Changes[0].Action)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)

	plan, err = eng.Plan(ctx, desired, engine.PlanOptions{Refresh: true})
	require.NoError(t, err)
	require.Equal(t, engine.ActionNoop, plan.Changes[0].Action)

	plan, err = eng.Plan(ctx, desired, engine.PlanOptions{Destroy: true})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	require.Equal(t, engine.ActionDelete, plan.Changes[0].Action)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, 0, store.Len())
}
