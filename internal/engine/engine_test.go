package engine

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/resource"
	"github.com/weft-io/weft/internal/state"
	"github.com/weft-io/weft/internal/version"
)

// widget is the resource type the engine tests run against.
type widget struct {
	resource.Meta
	Value int `json:"value"`
}

func (w *widget) ResourceType() string { return "widget" }

// gadget sorts after widgets regardless of address order.
type gadget struct {
	resource.Meta
	Value int `json:"value"`
}

func (g *gadget) ResourceType() string { return "gadget" }

func (g *gadget) PlanPriority() int { return 200 }

// memoryHandler provisions into a plain map, one entry per address.
type memoryHandler struct {
	store   map[string]map[string]any
	failing map[string]error
	writes  int
	onWrite func(address string)
}

func newMemoryHandler() *memoryHandler {
	return &memoryHandler{
		store:   make(map[string]map[string]any),
		failing: make(map[string]error),
	}
}

func liveAttrs(r resource.Resource) map[string]any {
	attrs := map[string]any{
		"id":   "live-" + r.ResourceName(),
		"name": r.ResourceName(),
	}
	switch v := r.(type) {
	case *widget:
		attrs["value"] = v.Value
	case *gadget:
		attrs["value"] = v.Value
	}
	return attrs
}

func (h *memoryHandler) Read(_ context.Context, _ Scope, prior *resource.Instance) (map[string]any, bool, error) {
	attrs, ok := h.store[prior.Address]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(attrs), true, nil
}

func (h *memoryHandler) Create(_ context.Context, _ Scope, desired resource.Resource) (map[string]any, error) {
	return h.write(resource.Address(desired), desired)
}

func (h *memoryHandler) Update(_ context.Context, _ Scope, desired resource.Resource, _ *resource.Instance) (map[string]any, error) {
	return h.write(resource.Address(desired), desired)
}

func (h *memoryHandler) Delete(_ context.Context, _ Scope, prior *resource.Instance) error {
	if err := h.failing[prior.Address]; err != nil {
		return err
	}
	delete(h.store, prior.Address)
	return nil
}

func (h *memoryHandler) write(addr string, desired resource.Resource) (map[string]any, error) {
	if err := h.failing[addr]; err != nil {
		return nil, err
	}
	h.writes++
	if h.onWrite != nil {
		h.onWrite(addr)
	}
	attrs := liveAttrs(desired)
	h.store[addr] = maps.Clone(attrs)
	return attrs, nil
}

func newTestEngine(t *testing.T) (*Engine, *memoryHandler) {
	t.Helper()
	reg := NewRegistry()
	handler := newMemoryHandler()
	require.NoError(t, reg.Register("widget", func() resource.Resource { return &widget{} }, handler))
	require.NoError(t, reg.Register("gadget", func() resource.Resource { return &gadget{} }, handler))
	statePath := filepath.Join(t.TempDir(), "state.json")
	return New(reg, "PRJ", statePath), handler
}

func TestPlanApplyLifecycle(t *testing.T) {
	eng, handler := newTestEngine(t)
	ctx := context.Background()

	r1 := &widget{Meta: resource.Meta{Name: "r1"}, Value: 1}

	plan1, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan1.Changes, 1)
	assert.Equal(t, ActionCreate, plan1.Changes[0].Action)
	assert.Equal(t, 1, plan1.Summary()[ActionCreate])
	assert.True(t, plan1.HasChanges())

	planPath := filepath.Join(filepath.Dir(eng.StatePath()), "plan.json")
	require.NoError(t, plan1.Save(planPath))
	loaded, err := LoadPlan(planPath)
	require.NoError(t, err)

	_, err = eng.Apply(ctx, loaded)
	require.NoError(t, err)

	st, err := state.Load(eng.StatePath())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Serial)
	require.Contains(t, st.Resources, "widget.r1")
	assert.Equal(t, 1, handler.store["widget.r1"]["value"])

	plan2, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan2.Changes, 1)
	assert.Equal(t, ActionNoop, plan2.Changes[0].Action)
	assert.False(t, plan2.HasChanges())

	res, err := eng.Apply(ctx, plan2)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)

	st2, err := state.Load(eng.StatePath())
	require.NoError(t, err)
	assert.Equal(t, 1, st2.Serial, "NOOP apply never writes state")

	r1b := &widget{Meta: resource.Meta{Name: "r1"}, Value: 2}
	plan3, err := eng.Plan(ctx, []resource.Resource{r1b}, PlanOptions{})
	require.NoError(t, err)
	require.Equal(t, ActionUpdate, plan3.Changes[0].Action)
	require.Contains(t, plan3.Changes[0].Diff, "value")
	assert.EqualValues(t, 1, plan3.Changes[0].Diff["value"].From)
	assert.EqualValues(t, 2, plan3.Changes[0].Diff["value"].To)

	_, err = eng.Apply(ctx, plan3)
	require.NoError(t, err)
	assert.Equal(t, 2, handler.store["widget.r1"]["value"])

	_, err = os.Stat(eng.StatePath() + ".backup")
	require.NoError(t, err, "second save leaves a .backup behind")

	plan4, err := eng.Plan(ctx, nil, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan4.Changes, 1)
	assert.Equal(t, ActionDelete, plan4.Changes[0].Action)

	_, err = eng.Apply(ctx, plan4)
	require.NoError(t, err)

	st3, err := state.Load(eng.StatePath())
	require.NoError(t, err)
	assert.Empty(t, st3.Resources)
	assert.Equal(t, 3, st3.Serial)
}

func TestPlanDependencyOrdering(t *testing.T) {
	eng, _ := newTestEngine(t)

	b := &widget{Meta: resource.Meta{Name: "b"}, Value: 1}
	a := &widget{Meta: resource.Meta{Name: "a", DependsOn: []string{"widget.b"}}, Value: 1}

	plan, err := eng.Plan(context.Background(), []resource.Resource{a, b}, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "widget.b", plan.Changes[0].Address)
	assert.Equal(t, "widget.a", plan.Changes[1].Address)
}

func TestPlanPriorityOrdering(t *testing.T) {
	eng, _ := newTestEngine(t)

	g := &gadget{Meta: resource.Meta{Name: "aa"}, Value: 1}
	w := &widget{Meta: resource.Meta{Name: "zz"}, Value: 1}

	plan, err := eng.Plan(context.Background(), []resource.Resource{g, w}, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "widget.zz", plan.Changes[0].Address, "lower plan priority goes first")
	assert.Equal(t, "gadget.aa", plan.Changes[1].Address)
}

func TestPlanDependencyCycle(t *testing.T) {
	eng, _ := newTestEngine(t)

	a := &widget{Meta: resource.Meta{Name: "a", DependsOn: []string{"widget.b"}}, Value: 1}
	b := &widget{Meta: resource.Meta{Name: "b", DependsOn: []string{"widget.a"}}, Value: 1}

	_, err := eng.Plan(context.Background(), []resource.Resource{a, b}, PlanOptions{})
	var cycleErr *DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"widget.a", "widget.b"}, cycleErr.Addresses)
}

func TestPlanDestroy(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	b := &widget{Meta: resource.Meta{Name: "b"}, Value: 1}
	a := &widget{Meta: resource.Meta{Name: "a", DependsOn: []string{"widget.b"}}, Value: 1}
	plan, err := eng.Plan(ctx, []resource.Resource{a, b}, PlanOptions{})
	require.NoError(t, err)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)

	destroy, err := eng.Plan(ctx, []resource.Resource{a, b}, PlanOptions{Destroy: true})
	require.NoError(t, err)
	require.Len(t, destroy.Changes, 2)
	assert.True(t, destroy.Metadata.Destroy)
	assert.Equal(t, "widget.a", destroy.Changes[0].Address, "dependents tear down first")
	assert.Equal(t, ActionDelete, destroy.Changes[0].Action)
	assert.Equal(t, "widget.b", destroy.Changes[1].Address)

	_, err = eng.Apply(ctx, destroy)
	require.NoError(t, err)

	st, err := state.Load(eng.StatePath())
	require.NoError(t, err)
	assert.Empty(t, st.Resources)
}

func TestPlanDeletesAbandonedResources(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	keep := &widget{Meta: resource.Meta{Name: "keep"}, Value: 1}
	drop := &widget{Meta: resource.Meta{Name: "drop", DependsOn: []string{"widget.keep"}}, Value: 1}
	plan, err := eng.Plan(ctx, []resource.Resource{keep, drop}, PlanOptions{})
	require.NoError(t, err)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)

	next, err := eng.Plan(ctx, []resource.Resource{keep}, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, next.Changes, 2)
	assert.Equal(t, "widget.keep", next.Changes[0].Address)
	assert.Equal(t, ActionNoop, next.Changes[0].Action)
	assert.Equal(t, "widget.drop", next.Changes[1].Address)
	assert.Equal(t, ActionDelete, next.Changes[1].Action)
}

func TestPlanDuplicateAddress(t *testing.T) {
	eng, _ := newTestEngine(t)

	r1 := &widget{Meta: resource.Meta{Name: "same"}, Value: 1}
	r2 := &widget{Meta: resource.Meta{Name: "same"}, Value: 2}

	_, err := eng.Plan(context.Background(), []resource.Resource{r1, r2}, PlanOptions{})
	var dupErr *DuplicateAddressError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "widget.same", dupErr.Address)
}

type orphan struct {
	resource.Meta
}

func (o *orphan) ResourceType() string { return "orphan" }

func TestPlanUnknownResourceType(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Plan(context.Background(), []resource.Resource{&orphan{Meta: resource.Meta{Name: "x"}}}, PlanOptions{})
	var unknownErr *UnknownResourceTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "orphan", unknownErr.Tag)
}

func TestPlanScopeMismatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	r1 := &widget{Meta: resource.Meta{Name: "r1"}, Value: 1}
	plan, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)

	other := New(eng.registry, "OTHER", eng.StatePath())
	_, err = other.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	var scopeErr *ScopeMismatchError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "OTHER", scopeErr.Expected)
	assert.Equal(t, "PRJ", scopeErr.Got)
}

func TestPlanWithRefreshSeesDrift(t *testing.T) {
	eng, handler := newTestEngine(t)
	ctx := context.Background()

	r1 := &widget{Meta: resource.Meta{Name: "r1"}, Value: 1}
	plan, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)
	_, err = eng.Apply(ctx, plan)
	require.NoError(t, err)

	handler.store["widget.r1"]["value"] = 99

	drifted, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{Refresh: true})
	require.NoError(t, err)
	require.Equal(t, ActionUpdate, drifted.Changes[0].Action)
	assert.EqualValues(t, 99, drifted.Changes[0].Diff["value"].From)
	assert.EqualValues(t, 1, drifted.Changes[0].Diff["value"].To)

	st, err := state.Load(eng.StatePath())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Serial, "refresh persists drift before diffing")
	assert.EqualValues(t, 99, st.Resources["widget.r1"].Attributes["value"])
	assert.Equal(t, st.Serial, drifted.Metadata.StateSerial)
}

func TestPlanMetadata(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	r1 := &widget{Meta: resource.Meta{Name: "r1"}, Value: 1}
	plan, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, "PRJ", plan.Metadata.ProjectKey)
	assert.Equal(t, version.Version, plan.Metadata.EngineVersion)
	assert.False(t, plan.Metadata.CreatedAt.IsZero())
	assert.NotEmpty(t, plan.Metadata.StateLineage)
	assert.NotEmpty(t, plan.Metadata.StateDigest)
	assert.NotEmpty(t, plan.Metadata.ConfigDigest)
	assert.Equal(t, 0, plan.Metadata.StateSerial)

	same, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, plan.Metadata.ConfigDigest, same.Metadata.ConfigDigest)

	changed, err := eng.Plan(ctx, []resource.Resource{&widget{Meta: resource.Meta{Name: "r1"}, Value: 7}}, PlanOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, plan.Metadata.ConfigDigest, changed.Metadata.ConfigDigest)

	destroy, err := eng.Plan(ctx, []resource.Resource{r1}, PlanOptions{Destroy: true})
	require.NoError(t, err)
	assert.NotEqual(t, plan.Metadata.ConfigDigest, destroy.Metadata.ConfigDigest)
}
