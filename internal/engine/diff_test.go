package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldEqual_Scalars(t *testing.T) {
	tests := []struct {
		name    string
		planned any
		prior   any
		want    bool
	}{
		{"equal strings", "a", "a", true},
		{"different strings", "a", "b", false},
		{"int equals its float form", 1, float64(1), true},
		{"different numbers", 1, 2, false},
		{"bools", true, true, true},
		{"value vs absent", "a", nil, false},
		{"both absent", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldEqual(tt.planned, tt.prior))
		})
	}
}

func TestFieldEqual_ListsCompareStrictly(t *testing.T) {
	assert.True(t, fieldEqual([]string{"a", "b"}, []any{"a", "b"}))
	assert.False(t, fieldEqual([]string{"a", "b"}, []any{"b", "a"}))
	assert.False(t, fieldEqual([]string{"a"}, []any{"a", "a"}))
}

func TestFieldEqual_MapsComparePartially(t *testing.T) {
	prior := map[string]any{"a": 1, "b": 2}

	assert.True(t, fieldEqual(map[string]any{"a": 1}, prior), "prior-only keys are ignored")
	assert.False(t, fieldEqual(map[string]any{"a": 1, "c": 3}, prior), "planned-only keys differ")
	assert.False(t, fieldEqual(map[string]any{"a": 2}, prior))
}

func TestFieldEqual_EmptyPlannedMapMatchesAnything(t *testing.T) {
	empty := map[string]any{}
	assert.True(t, fieldEqual(empty, map[string]any{"x": 1}))
	assert.True(t, fieldEqual(empty, nil))
	assert.True(t, fieldEqual(empty, "not even a map"))
}

func TestFieldEqual_NestedMapsInsidePartialAreStrict(t *testing.T) {
	planned := map[string]any{"cfg": map[string]any{"k": 1}}

	assert.True(t, fieldEqual(planned, map[string]any{"cfg": map[string]any{"k": 1}, "other": 9}))
	assert.False(t, fieldEqual(planned, map[string]any{"cfg": map[string]any{"k": 1, "extra": 2}}),
		"partiality does not recurse")
}

func TestDiffAttributes_OnlyPlannedKeysParticipate(t *testing.T) {
	planned := map[string]any{"name": "r1", "value": 2}
	prior := map[string]any{"id": "srv-123", "name": "r1", "value": 1}

	diff := diffAttributes(planned, prior)
	require.Len(t, diff, 1)
	assert.Equal(t, 1, diff["value"].From)
	assert.Equal(t, 2, diff["value"].To)
}

func TestDiffAttributes_KeyMissingFromPrior(t *testing.T) {
	diff := diffAttributes(map[string]any{"value": 5}, map[string]any{})
	require.Contains(t, diff, "value")
	assert.Nil(t, diff["value"].From)
	assert.Equal(t, 5, diff["value"].To)
}

func TestDiffAttributes_NumericFormNeverDrifts(t *testing.T) {
	diff := diffAttributes(map[string]any{"value": 1}, map[string]any{"value": float64(1)})
	assert.Empty(t, diff)
}

func TestAttributesEqual(t *testing.T) {
	a := map[string]any{"n": 1, "tags": []string{"x"}}
	b := map[string]any{"n": float64(1), "tags": []any{"x"}}
	assert.True(t, attributesEqual(a, b))
	assert.False(t, attributesEqual(a, map[string]any{"n": 2, "tags": []any{"x"}}))
}
