package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestModuleSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ModuleSpec
		wantErr string
	}{
		{"with only", ModuleSpec{Call: "a.star:f", With: map[string]any{}}, ""},
		{"instances only", ModuleSpec{Call: "a.star:f", Instances: map[string]map[string]any{}}, ""},
		{"missing call", ModuleSpec{With: map[string]any{}}, "call is required"},
		{"both", ModuleSpec{Call: "a.star:f", With: map[string]any{}, Instances: map[string]map[string]any{}}, "exactly one of"},
		{"neither", ModuleSpec{Call: "a.star:f"}, "exactly one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestExpandModulesWith(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "services.star", `
def service_pair(prefix, image):
    return [
        {"type": "service", "name": prefix + "_api", "image": image},
        {"type": "service", "name": prefix + "_worker", "image": image},
    ]
`)

	blocks, err := expandModules([]ModuleSpec{{
		Call: "services.star:service_pair",
		With: map[string]any{"prefix": "billing", "image": "nginx"},
	}}, dir)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, "billing_api", blocks[0]["name"])
	assert.Equal(t, "billing_worker", blocks[1]["name"])
	assert.Equal(t, "nginx", blocks[0]["image"])
}

func TestExpandModulesInstances(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "caches.star", `
def cache(name, size):
    return [{"type": "service", "name": name, "image": "redis", "replicas": size}]
`)

	blocks, err := expandModules([]ModuleSpec{{
		Call: "caches.star:cache",
		Instances: map[string]map[string]any{
			"beta":  {"size": 2},
			"alpha": {"size": 1},
		},
	}}, dir)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, "alpha", blocks[0]["name"], "instances should expand in name order")
	assert.Equal(t, "beta", blocks[1]["name"])
	assert.EqualValues(t, 1, blocks[0]["replicas"])
	assert.EqualValues(t, 2, blocks[1]["replicas"])
}

func TestLoadExpandsModules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	writeModule(t, dir, filepath.Join("lib", "caches.star"), `
def cache(name, size):
    return [{"type": "service", "name": name, "image": "redis", "replicas": size}]
`)
	path := writeConfig(t, dir, `
project: ANALYTICS
resources:
  - type: service
    name: api
    image: nginx
modules:
  - call: lib/caches.star:cache
    instances:
      sessions:
        size: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Resources, 2, "module output should append after declared resources")

	resources, err := cfg.BuildResources(newTestRegistry(t))
	require.NoError(t, err)

	sessions, ok := resources[1].(*service)
	require.True(t, ok)
	assert.Equal(t, "sessions", sessions.ResourceName())
	assert.Equal(t, "redis", sessions.Image)
	assert.Equal(t, 2, sessions.Replicas)
}

func TestExpandModulesBadCallFormat(t *testing.T) {
	for _, call := range []string{"nocolon", ":fn", "file.star:"} {
		_, err := expandModules([]ModuleSpec{{Call: call, With: map[string]any{}}}, t.TempDir())
		require.Error(t, err, "call %q should be rejected", call)
		assert.Contains(t, err.Error(), "invalid module call")
	}
}

func TestExpandModulesMissingScript(t *testing.T) {
	_, err := expandModules([]ModuleSpec{{
		Call: "absent.star:make",
		With: map[string]any{},
	}}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.star")
}

func TestExpandModulesMissingFunction(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.star", `
def other():
    return []
`)

	_, err := expandModules([]ModuleSpec{{Call: "lib.star:make", With: map[string]any{}}}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no function "make"`)
}

func TestExpandModulesNotCallable(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.star", "value = 42\n")

	_, err := expandModules([]ModuleSpec{{Call: "lib.star:value", With: map[string]any{}}}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not callable")
}

func TestExpandModulesNonListReturn(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.star", `
def single():
    return {"type": "service", "name": "x"}
`)

	_, err := expandModules([]ModuleSpec{{Call: "lib.star:single", With: map[string]any{}}}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return a list")
}

func TestExpandModulesNonDictItem(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.star", `
def items():
    return ["service"]
`)

	_, err := expandModules([]ModuleSpec{{Call: "lib.star:items", With: map[string]any{}}}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a resource dict")
}

func TestExpandModulesFunctionFailure(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib.star", `
def boom(name):
    fail("quota exceeded for " + name)
`)

	_, err := expandModules([]ModuleSpec{{
		Call:      "lib.star:boom",
		Instances: map[string]map[string]any{"alpha": {}},
	}}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lib.star:boom instance "alpha"`)
	assert.Contains(t, err.Error(), "quota exceeded for alpha")
}

func TestStarlarkValueConversion(t *testing.T) {
	in := map[string]any{
		"name":    "api",
		"count":   3,
		"ratio":   0.5,
		"enabled": true,
		"tags":    []any{"a", "b"},
		"limits":  map[string]any{"cpu": "100m"},
		"note":    nil,
	}

	sv, err := toStarlark(in)
	require.NoError(t, err)
	out, err := fromStarlark(sv)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":    "api",
		"count":   int64(3),
		"ratio":   0.5,
		"enabled": true,
		"tags":    []any{"a", "b"},
		"limits":  map[string]any{"cpu": "100m"},
		"note":    nil,
	}, out)
}

func TestStarlarkRejectsUnsupportedValue(t *testing.T) {
	_, err := toStarlark(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")
}
