package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/config"
	"github.com/weft-io/weft/internal/engine"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "weft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveStatePath(t *testing.T) {
	cfg := &config.Config{State: "demo.state.json", Dir: "/srv/project"}
	assert.Equal(t, filepath.Join("/srv/project", "demo.state.json"), resolveStatePath(cfg))

	cfg = &config.Config{State: "/var/lib/weft/demo.state.json", Dir: "/srv/project"}
	assert.Equal(t, "/var/lib/weft/demo.state.json", resolveStatePath(cfg))
}

func TestBuildRegistryMemoryOnly(t *testing.T) {
	reg, err := buildRegistry(t.Context(), &config.Config{Project: "demo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"memory_object"}, reg.Types())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, `"hello"`, formatValue("hello"))
	assert.Equal(t, "3", formatValue(3))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, `{"a":1}`, formatValue(map[string]any{"a": 1}))
	assert.Equal(t, `["x","y"]`, formatValue([]any{"x", "y"}))
}

func TestDescribeChange(t *testing.T) {
	create := &engine.ResourceChange{
		Action:  engine.ActionCreate,
		Planned: map[string]any{"name": "api", "image": "nginx:1.27"},
	}
	assert.Equal(t, "image = \"nginx:1.27\"\nname = \"api\"", describeChange(create))

	update := &engine.ResourceChange{
		Action: engine.ActionUpdate,
		Diff: map[string]engine.FieldDiff{
			"image": {From: "nginx:1.26", To: "nginx:1.27"},
		},
	}
	assert.Equal(t, `image = "nginx:1.26" -> "nginx:1.27"`, describeChange(update))

	del := &engine.ResourceChange{
		Action: engine.ActionDelete,
		Prior:  map[string]any{"name": "api"},
	}
	assert.Equal(t, `name = "api"`, describeChange(del))
}

// TestApplyCommandMemory drives apply end to end against the in-process
// catalog: create, then an idempotent re-apply without refresh.
func TestApplyCommandMemory(t *testing.T) {
	cfgPath := writeProject(t, `
project: demo
resources:
  - type: memory_object
    name: greeting
    data:
      message: hello
outputs:
  owner: platform-team
`)

	rootCmd.SetArgs([]string{"apply", "--auto-approve", "-c", cfgPath})
	require.NoError(t, rootCmd.Execute())

	statePath := filepath.Join(filepath.Dir(cfgPath), "demo.state.json")
	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "memory_object.greeting")
	assert.Contains(t, string(raw), "platform-team")

	// Memory objects do not outlive the registry that created them, so a
	// re-apply must skip refresh to be a no-op against the same state.
	rootCmd.SetArgs([]string{"apply", "--auto-approve", "--no-refresh", "-c", cfgPath})
	require.NoError(t, rootCmd.Execute())

	raw, err = os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "memory_object.greeting")
}

func TestValidateCommand(t *testing.T) {
	cfgPath := writeProject(t, `
project: demo
resources:
  - type: memory_object
    name: first
  - type: memory_object
    name: second
    depends_on: [memory_object.first]
`)

	rootCmd.SetArgs([]string{"validate", "-c", cfgPath})
	require.NoError(t, rootCmd.Execute())
}

func TestValidateCommandRejectsDuplicateAddresses(t *testing.T) {
	cfgPath := writeProject(t, `
project: demo
resources:
  - type: memory_object
    name: twin
  - type: memory_object
    name: twin
`)

	rootCmd.SetArgs([]string{"validate", "-c", cfgPath})
	err := rootCmd.Execute()
	require.Error(t, err)
	var dup *engine.DuplicateAddressError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "memory_object.twin", dup.Address)
}

func TestGraphCommandDot(t *testing.T) {
	cfgPath := writeProject(t, `
project: demo
resources:
  - type: memory_object
    name: base
  - type: memory_object
    name: dependent
    depends_on: [memory_object.base]
`)

	rootCmd.SetArgs([]string{"graph", "--dot", "-c", cfgPath})
	require.NoError(t, rootCmd.Execute())
}
