package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/resource"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	handler := newMemoryHandler()
	require.NoError(t, reg.Register("widget", func() resource.Resource { return &widget{} }, handler))

	registration, err := reg.Get("widget")
	require.NoError(t, err)
	assert.Same(t, handler, registration.Handler)
	assert.IsType(t, &widget{}, registration.New())
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	handler := newMemoryHandler()
	require.NoError(t, reg.Register("widget", func() resource.Resource { return &widget{} }, handler))

	err := reg.Register("widget", func() resource.Resource { return &widget{} }, handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("missing")
	var unknownErr *UnknownResourceTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "missing", unknownErr.Tag)
}

func TestRegistryRejectsIncompleteRegistration(t *testing.T) {
	reg := NewRegistry()
	handler := newMemoryHandler()

	assert.Error(t, reg.Register("", func() resource.Resource { return &widget{} }, handler))
	assert.Error(t, reg.Register("widget", nil, handler))
	assert.Error(t, reg.Register("widget", func() resource.Resource { return &widget{} }, nil))
}

func TestRegistryTypesSorted(t *testing.T) {
	reg := NewRegistry()
	handler := newMemoryHandler()
	require.NoError(t, reg.Register("zeta", func() resource.Resource { return &widget{} }, handler))
	require.NoError(t, reg.Register("alpha", func() resource.Resource { return &gadget{} }, handler))

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Types())
}
