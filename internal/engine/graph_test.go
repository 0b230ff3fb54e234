package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalOrder_Deterministic(t *testing.T) {
	g := NewGraph([]string{"c", "b", "a"}, nil, nil)
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	deps := map[string][]string{"b": {"a"}, "c": {"a"}}
	order, err := NewGraph([]string{"a", "b", "c"}, deps, nil).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalOrder_Chain(t *testing.T) {
	deps := map[string][]string{"a": {"b"}, "b": {"c"}}
	order, err := NewGraph([]string{"a", "b", "c"}, deps, nil).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTopologicalOrder_IgnoresExternalDeps(t *testing.T) {
	deps := map[string][]string{"b": {"external"}}
	order, err := NewGraph([]string{"a", "b"}, deps, nil).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestTopologicalOrder_PriorityBreaksTies(t *testing.T) {
	prios := map[string]int{"z": 1, "a": 2}
	order, err := NewGraph([]string{"a", "z"}, nil, prios).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, order)
}

func TestTopologicalOrder_PriorityNeverOverridesEdges(t *testing.T) {
	deps := map[string][]string{"a": {"z"}}
	prios := map[string]int{"a": 1, "z": 50}
	order, err := NewGraph([]string{"a", "z"}, deps, prios).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, order)
}

func TestTopologicalOrder_CycleDetection(t *testing.T) {
	deps := map[string][]string{"a": {"b"}, "b": {"a"}}
	_, err := NewGraph([]string{"a", "b", "ok"}, deps, nil).TopologicalOrder()

	var cycleErr *DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Addresses, "only the unorderable nodes are reported")
}

func TestTopologicalOrder_DuplicateEdgesCollapse(t *testing.T) {
	deps := map[string][]string{"b": {"a", "a", "a"}}
	order, err := NewGraph([]string{"a", "b"}, deps, nil).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestReverseTopologicalOrder(t *testing.T) {
	deps := map[string][]string{"a": {"b"}, "b": {"c"}}
	order, err := NewGraph([]string{"a", "b", "c"}, deps, nil).ReverseTopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestGraphDOT(t *testing.T) {
	deps := map[string][]string{"b": {"a"}}
	dot := NewGraph([]string{"a", "b", "lone"}, deps, nil).DOT()
	assert.Contains(t, dot, `"a" -> "b";`)
	assert.Contains(t, dot, `"lone";`)
}
